package pipeline

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "soilsense"
const metricsSubsystem = "pipeline"

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	Received       prometheus.Counter
	DecodeFailures prometheus.Counter
	Enqueued       prometheus.Counter
	Persisted      prometheus.Counter
	WriteFailures  prometheus.Counter
	ShutdownDrops  prometheus.Counter
	QueueDepth     prometheus.Gauge
	WriteDuration  prometheus.Histogram
	State          prometheus.Gauge
}

// NewMetrics creates the pipeline collectors and registers them with reg.
//
// A nil reg leaves them unregistered. Collectors that reg already holds
// (from an earlier pipeline in the same process) are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "messages_received_total",
			Help:      "Inbound publishes taken from the broker.",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "decode_failures_total",
			Help:      "Payloads dropped because they could not be decoded.",
		}),
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "measurements_enqueued_total",
			Help:      "Decoded measurements handed to the persistence worker.",
		}),
		Persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "measurements_persisted_total",
			Help:      "Measurements acknowledged by the store.",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "write_failures_total",
			Help:      "Measurements dropped after exhausting write retries.",
		}),
		ShutdownDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "shutdown_drops_total",
			Help:      "Acknowledged measurements left unwritten when the drain deadline passed.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "queue_depth",
			Help:      "Measurements waiting to be written.",
		}),
		WriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "write_duration_seconds",
			Help:      "Time spent writing one measurement, retries included.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "state",
			Help:      "Lifecycle state: 0 idle, 1 subscribed, 2 draining, 3 stopped, 4 terminated.",
		}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	if m.Received, err = register(reg, m.Received); err != nil {
		return nil, err
	}
	if m.DecodeFailures, err = register(reg, m.DecodeFailures); err != nil {
		return nil, err
	}
	if m.Enqueued, err = register(reg, m.Enqueued); err != nil {
		return nil, err
	}
	if m.Persisted, err = register(reg, m.Persisted); err != nil {
		return nil, err
	}
	if m.WriteFailures, err = register(reg, m.WriteFailures); err != nil {
		return nil, err
	}
	if m.ShutdownDrops, err = register(reg, m.ShutdownDrops); err != nil {
		return nil, err
	}
	if m.QueueDepth, err = register(reg, m.QueueDepth); err != nil {
		return nil, err
	}
	if m.WriteDuration, err = register(reg, m.WriteDuration); err != nil {
		return nil, err
	}
	if m.State, err = register(reg, m.State); err != nil {
		return nil, err
	}

	return m, nil
}

// register adds c to reg, returning the collector already registered
// under the same descriptor if there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metrics: %w", err)
	}
	return c, nil
}
