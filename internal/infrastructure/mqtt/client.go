package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/soilsense-core/internal/infrastructure/config"
)

// Client owns one logical connection to the MQTT broker.
//
// paho delivers messages, SUBACKs and connection changes from its own
// goroutines. Client funnels all of them into a single bounded event queue
// so that the owner drives the protocol step by step with Poll. When the
// queue is full the paho side blocks until Poll drains it or Close is
// called.
//
// Thread Safety:
//   - Publish, Subscribe, IsConnected, HealthCheck and Close are safe for
//     concurrent use.
//   - Poll and SubscribeAndAwaitAck are meant for a single consumer.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	logger Logger

	events chan Event
	nextID atomic.Uint64

	// pending holds publishes that arrived while SubscribeAndAwaitAck was
	// waiting. Poll returns them, in arrival order, before reading events.
	pending   []Event
	pendingMu sync.Mutex

	// lost is closed once when the connection drops; lostErr is written
	// before the close and read only after it.
	lost     chan struct{}
	lostOnce sync.Once
	lostErr  error

	done      chan struct{}
	closeOnce sync.Once

	connected bool
	connMu    sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for connection and protocol events.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// newClient builds an unconnected Client around cfg.
func newClient(cfg config.MQTTConfig, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
		events: make(chan Event, eventBuffer(cfg)),
		lost:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament (LWT) for offline detection
//  3. Routes paho callbacks into the event queue
//  4. Waits for the CONNACK, honouring ctx and the connect timeout
//
// The client never reconnects on its own. A dropped connection surfaces as
// ErrConnectionLost from Poll and the owner decides what to do.
//
// Parameters:
//   - ctx: Cancels the connection attempt
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: Wrapping ErrConnectionFailed if the broker is unreachable,
//     refuses the connection, or ctx ends first
func Connect(ctx context.Context, cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := newClient(cfg, opts...)

	pahoOpts := buildClientOptions(cfg)
	configureLWT(pahoOpts, cfg.Broker.ClientID)

	pahoOpts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})
	// Messages that match no subscription route still need an owner.
	pahoOpts.SetDefaultPublishHandler(c.handleMessage)

	c.client = pahomqtt.NewClient(pahoOpts)
	if err := c.waitConnect(ctx); err != nil {
		return nil, err
	}

	// The OnConnect handler runs asynchronously and may not have executed
	// yet, so mark the client connected here as well.
	c.setConnected(true)

	return c, nil
}

// waitConnect sends CONNECT and waits for the outcome.
func (c *Client) waitConnect(ctx context.Context) error {
	timeout := connectTimeout(c.cfg)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	token := c.client.Connect()
	for {
		if token.WaitTimeout(connectPollInterval) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
		case <-deadline.C:
			c.client.Disconnect(0)
			return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
		default:
		}
	}
}

// handleConnect is called by paho when the connection is established.
func (c *Client) handleConnect() {
	c.setConnected(true)

	c.client.Publish(
		Topics{}.Status(c.cfg.Broker.ClientID), qosAtLeastOnce, true,
		buildStatusPayload(c.cfg.Broker.ClientID, "online", ""),
	)

	c.logger.Info("mqtt connected", "client_id", c.cfg.Broker.ClientID)
	c.deliver(Event{Kind: EventConnected})
}

// handleConnectionLost is called by paho when the connection drops.
func (c *Client) handleConnectionLost(err error) {
	c.setConnected(false)

	if err == nil {
		err = errors.New("connection closed by broker")
	}
	c.lostOnce.Do(func() {
		c.lostErr = err
		close(c.lost)
	})

	c.logger.Warn("mqtt connection lost", "error", err)
}

// handleMessage queues an inbound publish. It blocks while the event queue
// is full, which in turn stops paho reading further messages.
func (c *Client) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	ev := NewPublishEvent(msg.Topic(), msg.Payload(), msg.MessageID(), msg.Ack)
	ev.QoS = msg.Qos()
	ev.Duplicate = msg.Duplicate()
	c.deliver(ev)
}

// deliver pushes ev onto the event queue unless the client is closed.
func (c *Client) deliver(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Poll returns the next event, blocking until one arrives.
//
// Publishes held back by SubscribeAndAwaitAck come first. Events already
// queued are returned before a connection loss is reported.
//
// Returns:
//   - Event: The next protocol event
//   - error: ErrConnectionLost (wrapped with the cause) once the connection
//     has dropped and the queue is empty, ErrClosed after Close, or
//     ctx.Err() if ctx ends first
func (c *Client) Poll(ctx context.Context) (Event, error) {
	if ev, ok := c.popPending(); ok {
		return ev, nil
	}
	return c.next(ctx)
}

// next blocks on the event queue, ignoring held publishes.
func (c *Client) next(ctx context.Context) (Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	default:
	}

	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.lost:
		return Event{}, fmt.Errorf("%w: %w", ErrConnectionLost, c.lostErr)
	case <-c.done:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// holdPending keeps a publish for a later Poll.
func (c *Client) holdPending(ev Event) {
	c.pendingMu.Lock()
	c.pending = append(c.pending, ev)
	c.pendingMu.Unlock()
}

// popPending removes the oldest held publish.
func (c *Client) popPending() (Event, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.pending) == 0 {
		return Event{}, false
	}
	ev := c.pending[0]
	c.pending[0] = Event{}
	c.pending = c.pending[1:]
	return ev, true
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Publishes graceful offline status (different from LWT crash status)
//  2. Releases any paho goroutine blocked on the event queue
//  3. Disconnects from broker
//
// Close is idempotent.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.closeOnce.Do(func() {
		if c.IsConnected() {
			token := c.client.Publish(
				Topics{}.Status(c.cfg.Broker.ClientID), qosAtLeastOnce, true,
				buildStatusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown"),
			)
			token.WaitTimeout(defaultPublishTimeout)
		}

		close(c.done)
		c.client.Disconnect(defaultDisconnectQuiesce)
		c.setConnected(false)
	})

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
//
// Note: This reflects the last known state. A dropped connection is only
// noticed once keepalive or a read fails.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

func (c *Client) setConnected(connected bool) {
	c.connMu.Lock()
	c.connected = connected
	c.connMu.Unlock()
}
