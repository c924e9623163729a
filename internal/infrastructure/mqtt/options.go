package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/soilsense-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is used when the config leaves connect_timeout unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is used when the config leaves keep_alive unset.
	defaultKeepAlive = 5 * time.Second

	// defaultEventBuffer is used when the config leaves event_buffer unset.
	defaultEventBuffer = 10

	// connectPollInterval is how often Connect re-checks ctx while waiting
	// for the CONNACK.
	connectPollInterval = 100 * time.Millisecond

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// qosAtLeastOnce is the QoS used for sensor subscriptions.
	qosAtLeastOnce = 1

	// subackFailure is the SUBACK return code for a rejected subscription.
	subackFailure = 0x80

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho MQTT options from SoilSense config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID and credentials (if provided)
//   - Clean session, keepalive and connect timeout
//   - No automatic reconnection: a lost connection is reported through Poll
//   - Manual acknowledgement, so PUBACK is sent only when the owner calls Ack
//   - In-order delivery of inbound messages
//   - TLS configuration (if enabled)
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(connectTimeout(cfg))
	opts.SetKeepAlive(keepAlive(cfg))

	opts.SetAutoAckDisabled(true)
	opts.SetOrderMatters(true)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// Topic: soilsense/status/<client_id>
// QoS: 1
// Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(Topics{}.Status(clientID), buildStatusPayload(clientID, "offline", "unexpected_disconnect"), 1, true)
}

// buildStatusPayload creates the JSON payload for status messages.
// reason is omitted when empty.
func buildStatusPayload(clientID, status, reason string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`, status, clientID, ts)
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`, status, clientID, reason, ts)
}

func connectTimeout(cfg config.MQTTConfig) time.Duration {
	if cfg.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return time.Duration(cfg.ConnectTimeout) * time.Second
}

func keepAlive(cfg config.MQTTConfig) time.Duration {
	if cfg.KeepAlive <= 0 {
		return defaultKeepAlive
	}
	return time.Duration(cfg.KeepAlive) * time.Second
}

func eventBuffer(cfg config.MQTTConfig) int {
	if cfg.EventBuffer <= 0 {
		return defaultEventBuffer
	}
	return cfg.EventBuffer
}
