package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/soilsense-core/internal/infrastructure/logging"
	"github.com/nerrad567/soilsense-core/internal/measurement"
	"github.com/nerrad567/soilsense-core/internal/sensor"
)

// fakePublisher records published payloads.
type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	qos      []byte
	err      error
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	f.qos = append(f.qos, qos)
	return nil
}

func testSensor() *sensor.Sensor {
	return sensor.New(sensor.Config{ID: "sensor_01", Location: "location_01"},
		sensor.WithRand(rand.New(rand.NewPCG(1, 1))))
}

func TestPublishLoop_Count(t *testing.T) {
	pub := &fakePublisher{}

	sent, err := publishLoop(context.Background(), pub, testSensor(), "test/topic", time.Millisecond, 5, logging.Discard())
	if err != nil {
		t.Fatalf("publishLoop() error = %v", err)
	}
	if sent != 5 {
		t.Errorf("sent = %d, want 5", sent)
	}
	if len(pub.payloads) != 5 {
		t.Fatalf("published %d payloads, want 5", len(pub.payloads))
	}

	first, err := measurement.Decode(pub.payloads[0])
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if first.Data != sensor.DefaultSeed {
		t.Errorf("first Data = %v, want seed %v", first.Data, float32(sensor.DefaultSeed))
	}
	if first.SensorID != "sensor_01" || first.Location != "location_01" || first.Unit != "cb" {
		t.Errorf("first = %+v, want sensor_01/location_01/cb", first)
	}

	for i := range pub.topics {
		if pub.topics[i] != "test/topic" {
			t.Errorf("topic[%d] = %q, want %q", i, pub.topics[i], "test/topic")
		}
		if pub.qos[i] != 1 {
			t.Errorf("qos[%d] = %d, want 1", i, pub.qos[i])
		}
	}
}

func TestPublishLoop_StopsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sent, err := publishLoop(ctx, pub, testSensor(), "t", time.Hour, 0, logging.Discard())
	if err != nil {
		t.Fatalf("publishLoop() error = %v", err)
	}
	// The first reading goes out before the loop waits.
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
}

func TestPublishLoop_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("mqtt not connected")}

	sent, err := publishLoop(context.Background(), pub, testSensor(), "t", time.Millisecond, 3, logging.Discard())
	if err == nil {
		t.Fatal("publishLoop() expected error")
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
}

func TestPublisherClientID(t *testing.T) {
	if got := publisherClientID("sensor_01"); got != "soilsense-pub-sensor_01" {
		t.Errorf("publisherClientID() = %q, want %q", got, "soilsense-pub-sensor_01")
	}
	if got := publisherClientID(""); got != "soilsense-pub" {
		t.Errorf("publisherClientID(\"\") = %q, want %q", got, "soilsense-pub")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	if err := run(context.Background(), "/nonexistent/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}
