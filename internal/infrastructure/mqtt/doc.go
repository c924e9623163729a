// Package mqtt provides the broker transport for SoilSense Core.
//
// This package manages:
//   - One connection to the broker (Mosquitto in production)
//   - QoS 1 subscriptions with explicit SUBACK handling
//   - Manual acknowledgement of inbound messages
//   - Publishing for the sensor simulator
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// paho invokes its callbacks from internal goroutines. The Client funnels
// every callback into one bounded event queue and exposes it through Poll,
// so the owner sees a single ordered stream:
//
//	paho callbacks → event queue (event_buffer) → Poll → owner
//
// Inbound messages are not acknowledged automatically. The owner calls
// Event.Ack once it has taken responsibility for the message; until then
// the broker keeps it in flight.
//
// The client never reconnects on its own. A dropped connection is reported
// once the queue is drained, as ErrConnectionLost, and every later Poll
// reports it again.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, mqtt.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.SubscribeAndAwaitAck(ctx, cfg.MQTT.Topic); err != nil {
//	    return err
//	}
//
//	for {
//	    ev, err := client.Poll(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    if ev.Kind == mqtt.EventPublish {
//	        handle(ev.Payload)
//	        ev.Ack()
//	    }
//	}
package mqtt
