package sensor

import (
	"math/rand/v2"
	"sync"

	"github.com/nerrad567/soilsense-core/internal/measurement"
)

// Defaults used when a Config field is left zero.
const (
	DefaultSeed = 30.2
	DefaultUnit = "cb"

	// MaxStep bounds the per-reading change: each step is drawn from [-MaxStep, MaxStep).
	MaxStep = 0.3
)

// Config identifies a simulated probe.
type Config struct {
	ID       string
	Location string
	Unit     string
	Seed     float32
}

// Sensor is a simulated soil-moisture probe.
//
// Thread Safety: Read is safe for concurrent use.
type Sensor struct {
	cfg Config

	mu      sync.Mutex
	current float32
	rng     *rand.Rand
}

// Option configures a Sensor.
type Option func(*Sensor)

// WithRand sets the random source, for reproducible walks in tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Sensor) {
		s.rng = rng
	}
}

// New creates a Sensor whose first reading is cfg.Seed.
func New(cfg Config, opts ...Option) *Sensor {
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	if cfg.Unit == "" {
		cfg.Unit = DefaultUnit
	}

	s := &Sensor{
		cfg:     cfg,
		current: cfg.Seed,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		//nolint:gosec // simulated readings, not security sensitive
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Read returns the current reading as a Measurement, then advances the walk.
func (s *Sensor) Read() measurement.Measurement {
	s.mu.Lock()
	value := s.current
	s.current += s.step()
	s.mu.Unlock()

	return measurement.New(value, s.cfg.Unit, s.cfg.ID, s.cfg.Location)
}

// step draws from [-MaxStep, MaxStep). Caller holds mu.
func (s *Sensor) step() float32 {
	return float32((s.rng.Float64()*2 - 1) * MaxStep)
}
