package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe sends a QoS 1 SUBSCRIBE for topic and returns without waiting.
//
// The broker's answer arrives later as an EventSubAck from Poll. Inbound
// messages on the topic arrive as EventPublish and must be acknowledged
// with Event.Ack.
//
// Returns:
//   - error: ErrInvalidTopic or ErrNotConnected; broker-side failures are
//     reported on the EventSubAck instead
func (c *Client) Subscribe(topic string) error {
	_, err := c.subscribe(topic)
	return err
}

// SubscribeAndAwaitAck subscribes to topic and blocks until the broker has
// acknowledged that subscription.
//
// Inbound publishes seen while waiting are neither acknowledged nor
// dropped: the broker may send matching messages (retained ones included)
// before paho completes the SUBACK token, so they are held and returned by
// Poll, in arrival order, ahead of anything queued later. Other events seen
// while waiting are discarded.
//
// Returns:
//   - error: wrapping ErrSubscribeFailed if the request could not be sent or
//     was rejected; the Poll error if the connection drops, the client is
//     closed, or ctx ends while waiting
func (c *Client) SubscribeAndAwaitAck(ctx context.Context, topic string) error {
	id, err := c.subscribe(topic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	for {
		ev, err := c.next(ctx)
		if err != nil {
			return fmt.Errorf("awaiting suback for %q: %w", topic, err)
		}

		if ev.Kind == EventSubAck && ev.RequestID == id {
			if ev.Err != nil {
				return fmt.Errorf("%w: %w", ErrSubscribeFailed, ev.Err)
			}
			c.logger.Info("mqtt subscribed", "topic", topic)
			return nil
		}

		if ev.Kind == EventPublish {
			c.holdPending(ev)
			continue
		}

		c.logger.Debug("discarding event while awaiting suback",
			"event", ev.Kind.String(),
			"topic", ev.Topic,
		)
	}
}

// subscribe sends the request and returns its ID. A goroutine waits on the
// paho token and reports the outcome as an EventSubAck.
func (c *Client) subscribe(topic string) (uint64, error) {
	if err := ValidateTopic(topic); err != nil {
		return 0, err
	}
	if !c.IsConnected() {
		return 0, ErrNotConnected
	}

	id := c.nextID.Add(1)
	token := c.client.Subscribe(topic, qosAtLeastOnce, c.handleMessage)
	go c.awaitSubAck(id, topic, token)

	return id, nil
}

func (c *Client) awaitSubAck(id uint64, topic string, token pahomqtt.Token) {
	select {
	case <-token.Done():
	case <-c.done:
		return
	}

	err := token.Error()
	if err == nil {
		err = subackError(topic, token)
	}

	c.deliver(Event{
		Kind:      EventSubAck,
		Topic:     topic,
		RequestID: id,
		Err:       err,
	})
}

// subackError reports a broker rejection carried in the SUBACK return codes.
func subackError(topic string, token pahomqtt.Token) error {
	st, ok := token.(*pahomqtt.SubscribeToken)
	if !ok {
		return nil
	}
	if code, found := st.Result()[topic]; found && code == subackFailure {
		return fmt.Errorf("broker rejected subscription to %q (return code 0x%02x)", topic, code)
	}
	return nil
}
