package pipeline

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.Received.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"soilsense_pipeline_messages_received_total",
		"soilsense_pipeline_decode_failures_total",
		"soilsense_pipeline_measurements_enqueued_total",
		"soilsense_pipeline_measurements_persisted_total",
		"soilsense_pipeline_write_failures_total",
		"soilsense_pipeline_shutdown_drops_total",
		"soilsense_pipeline_queue_depth",
		"soilsense_pipeline_write_duration_seconds",
		"soilsense_pipeline_state",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNewMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	second, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("second NewMetrics() error = %v", err)
	}

	second.Persisted.Inc()
	if got := testutil.ToFloat64(first.Persisted); got != 1 {
		t.Errorf("Persisted = %v, want 1 (shared collector)", got)
	}
}

func TestNewMetrics_Unregistered(t *testing.T) {
	m, err := NewMetrics(nil)
	if err != nil {
		t.Fatalf("NewMetrics(nil) error = %v", err)
	}
	m.State.Set(float64(StateDraining))
	if got := testutil.ToFloat64(m.State); got != 2 {
		t.Errorf("State = %v, want 2", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateSubscribed, "subscribed"},
		{StateDraining, "draining"},
		{StateStopped, "stopped"},
		{StateTerminated, "terminated"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
