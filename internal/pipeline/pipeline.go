package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/soilsense-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/soilsense-core/internal/measurement"
	"github.com/nerrad567/soilsense-core/internal/persistence"
)

// Transport is the broker side of the pipeline. *mqtt.Client implements it.
type Transport interface {
	SubscribeAndAwaitAck(ctx context.Context, topic string) error
	Poll(ctx context.Context) (mqtt.Event, error)
}

// Writer persists one measurement with retries. *persistence.Retrier
// implements it.
type Writer interface {
	WriteWithRetry(ctx context.Context, m measurement.Measurement, table string, maxRetries int) (bool, error)
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the pipeline settings taken from the mqtt, store and
// pipeline sections of config.yaml.
type Config struct {
	// Topic is the subscription topic.
	Topic string

	// Table is the destination table in the store.
	Table string

	// MaxRetries bounds write attempts per measurement.
	MaxRetries int

	// QueueSize is the capacity of the queue between ingestion and persistence.
	QueueSize int

	// DrainTimeout bounds how long persistence keeps writing acknowledged
	// measurements after Run's context is cancelled. Zero means
	// DefaultDrainTimeout.
	DrainTimeout time.Duration
}

// DefaultDrainTimeout is used when Config.DrainTimeout is not set.
const DefaultDrainTimeout = 10 * time.Second

// Pipeline drives one subscription from SUBACK to shutdown.
//
// A Pipeline runs once; build a new one to start again.
type Pipeline struct {
	transport Transport
	writer    Writer
	cfg       Config
	logger    Logger
	metrics   *Metrics

	state   atomic.Int32
	started atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the collectors the pipeline updates.
func WithMetrics(metrics *Metrics) Option {
	return func(p *Pipeline) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

// New creates an idle pipeline.
func New(transport Transport, writer Writer, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		transport: transport,
		writer:    writer,
		cfg:       cfg,
		logger:    slog.New(slog.DiscardHandler),
	}
	if p.cfg.DrainTimeout <= 0 {
		p.cfg.DrainTimeout = DefaultDrainTimeout
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		// Unregistered collectors; nothing can fail without a registry.
		p.metrics, _ = NewMetrics(nil)
	}
	p.setState(StateIdle)
	return p
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	p.metrics.State.Set(float64(s))
}

// Run subscribes and processes messages until ctx is cancelled or the
// transport fails.
//
// Returns:
//   - nil after cancellation
//   - an error wrapping ErrSubscribe if the subscription was not acknowledged
//   - an error wrapping ErrTransport if the connection failed while draining
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if err := p.transport.SubscribeAndAwaitAck(ctx, p.cfg.Topic); err != nil {
		if ctx.Err() != nil {
			p.setState(StateStopped)
			return nil
		}
		p.setState(StateTerminated)
		return fmt.Errorf("%w: %q: %w", ErrSubscribe, p.cfg.Topic, err)
	}
	p.setState(StateSubscribed)
	p.logger.Info("subscription acknowledged", "topic", p.cfg.Topic)

	queue := NewQueue(p.cfg.QueueSize)

	var g errgroup.Group
	g.Go(func() error {
		defer queue.Close()
		return p.ingest(ctx, queue)
	})
	g.Go(func() error {
		p.persist(ctx, queue)
		return nil
	})

	p.setState(StateDraining)
	p.logger.Info("pipeline draining", "queue_size", queue.Cap(), "table", p.cfg.Table)

	if err := g.Wait(); err != nil {
		p.setState(StateTerminated)
		p.logger.Error("pipeline terminated", "error", err)
		return err
	}

	p.setState(StateStopped)
	p.logger.Info("pipeline stopped")
	return nil
}

// ingest polls the transport until ctx ends or the transport fails.
func (p *Pipeline) ingest(ctx context.Context, queue *Queue) error {
	for {
		ev, err := p.transport.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}

		if ev.Kind != mqtt.EventPublish {
			p.logger.Debug("ignoring transport event", "event", ev.Kind.String(), "topic", ev.Topic)
			continue
		}

		if err := p.handlePublish(ctx, queue, ev); err != nil {
			// Only cancellation ends an enqueue; the message stays
			// unacknowledged and the broker will redeliver it.
			return nil
		}
	}
}

// handlePublish decodes one inbound message, queues it and acknowledges it.
func (p *Pipeline) handlePublish(ctx context.Context, queue *Queue, ev mqtt.Event) error {
	p.metrics.Received.Inc()

	m, err := measurement.Decode(ev.Payload)
	if err != nil {
		p.metrics.DecodeFailures.Inc()
		p.logger.Warn("dropping undecodable payload",
			"topic", ev.Topic,
			"message_id", ev.MessageID,
			"error", err,
		)
		ev.Ack()
		return nil
	}

	if err := queue.Enqueue(ctx, m); err != nil {
		return err
	}
	p.metrics.Enqueued.Inc()
	p.metrics.QueueDepth.Set(float64(queue.Len()))

	ev.Ack()
	p.logger.Debug("measurement queued", "id", m.ID, "sensor_id", m.SensorID, "duplicate", ev.Duplicate)
	return nil
}

// persist writes queued measurements until the queue is closed and empty.
//
// Every queued measurement has already been acknowledged to the broker, so
// cancelling ctx does not stop persistence: the ingester closes the queue
// and persistence keeps writing for up to DrainTimeout. Whatever is still
// unwritten at that deadline is logged and counted as dropped.
func (p *Pipeline) persist(ctx context.Context, queue *Queue) {
	writeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(p.cfg.DrainTimeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-writeCtx.Done():
		}
	})
	defer stop()

	for {
		m, err := queue.Dequeue(writeCtx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				p.logger.Debug("queue drained")
				return
			}
			p.dropOnShutdown(queue.Len(), "")
			return
		}
		p.metrics.QueueDepth.Set(float64(queue.Len()))

		start := time.Now()
		ok, err := p.writer.WriteWithRetry(writeCtx, m, p.cfg.Table, p.cfg.MaxRetries)
		p.metrics.WriteDuration.Observe(time.Since(start).Seconds())

		switch {
		case err == nil && ok:
			p.metrics.Persisted.Inc()
			p.logger.Debug("measurement persisted", "id", m.ID)
		case writeCtx.Err() != nil:
			p.dropOnShutdown(1+queue.Len(), m.ID)
			return
		default:
			if err == nil {
				err = persistence.ErrNotAcknowledged
			}
			p.metrics.WriteFailures.Inc()
			p.logger.Error("dropping measurement after failed writes",
				"id", m.ID,
				"sensor_id", m.SensorID,
				"error", err,
			)
		}
	}
}

// dropOnShutdown records acknowledged measurements abandoned at the drain
// deadline. inFlight is the id of the interrupted write, if any.
func (p *Pipeline) dropOnShutdown(n int, inFlight string) {
	if n == 0 {
		return
	}
	p.metrics.ShutdownDrops.Add(float64(n))
	p.metrics.QueueDepth.Set(0)
	p.logger.Error("drain deadline reached, dropping acknowledged measurements",
		"dropped", n,
		"in_flight_id", inFlight,
		"drain_timeout", p.cfg.DrainTimeout,
	)
}
