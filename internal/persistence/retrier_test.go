package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/soilsense-core/internal/measurement"
)

// scriptedWriter returns the scripted results in order, then repeats the last.
type scriptedWriter struct {
	mu      sync.Mutex
	results []result
	calls   int
	tables  []string
}

type result struct {
	ok  bool
	err error
}

func (w *scriptedWriter) Write(_ context.Context, _ measurement.Measurement, table string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tables = append(w.tables, table)
	i := min(w.calls, len(w.results)-1)
	w.calls++
	return w.results[i].ok, w.results[i].err
}

// recordingSleep records requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

var errStore = errors.New("store unavailable")

func testMeasurement() measurement.Measurement {
	return measurement.New(30.0, "cb", "sensor_01", "location_01")
}

// =============================================================================
// Backoff Tests
// =============================================================================

func TestBackoff_DelaySequence(t *testing.T) {
	b := NewBackoff(100)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		32 * time.Second,
		32 * time.Second,
	}

	for i, w := range want {
		got, ok := b.Next()
		if !ok {
			t.Fatalf("Next() #%d exhausted early", i+1)
		}
		if got != w {
			t.Errorf("Next() #%d = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoff_Exhaustion(t *testing.T) {
	tests := []struct {
		maxRetries int
		wantSleeps int
	}{
		{maxRetries: 0, wantSleeps: 0},
		{maxRetries: 1, wantSleeps: 0},
		{maxRetries: 2, wantSleeps: 0},
		{maxRetries: 3, wantSleeps: 1},
		{maxRetries: 5, wantSleeps: 3},
		{maxRetries: 10, wantSleeps: 8},
	}

	for _, tt := range tests {
		b := NewBackoff(tt.maxRetries)
		sleeps := 0
		for {
			if _, ok := b.Next(); !ok {
				break
			}
			sleeps++
		}
		if sleeps != tt.wantSleeps {
			t.Errorf("NewBackoff(%d): %d sleeps, want %d", tt.maxRetries, sleeps, tt.wantSleeps)
		}
	}
}

func TestBackoff_NeverExceedsMaxDelay(t *testing.T) {
	b := NewBackoff(1000)
	for range 500 {
		d, ok := b.Next()
		if !ok {
			t.Fatal("Next() exhausted early")
		}
		if d > MaxDelay {
			t.Fatalf("Next() = %v, exceeds %v", d, MaxDelay)
		}
	}
}

// =============================================================================
// WriteWithRetry Tests
// =============================================================================

func TestWriteWithRetry_SucceedsAfterFailures(t *testing.T) {
	w := &scriptedWriter{results: []result{
		{false, errStore},
		{false, errStore},
		{true, nil},
	}}
	s := &recordingSleep{}
	r := NewRetrier(w, WithSleep(s.sleep))

	ok, err := r.WriteWithRetry(context.Background(), testMeasurement(), "soil_moisture_readings", 5)
	if err != nil {
		t.Fatalf("WriteWithRetry() error = %v", err)
	}
	if !ok {
		t.Error("WriteWithRetry() = false, want true")
	}
	if w.calls != 3 {
		t.Errorf("attempts = %d, want 3", w.calls)
	}

	wantDelays := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(s.delays) != len(wantDelays) {
		t.Fatalf("delays = %v, want %v", s.delays, wantDelays)
	}
	for i := range wantDelays {
		if s.delays[i] != wantDelays[i] {
			t.Errorf("delay[%d] = %v, want %v", i, s.delays[i], wantDelays[i])
		}
	}
	for _, table := range w.tables {
		if table != "soil_moisture_readings" {
			t.Errorf("table = %q, want soil_moisture_readings", table)
		}
	}
}

func TestWriteWithRetry_NoRetryOnSuccess(t *testing.T) {
	w := &scriptedWriter{results: []result{{true, nil}}}
	s := &recordingSleep{}
	r := NewRetrier(w, WithSleep(s.sleep))

	ok, err := r.WriteWithRetry(context.Background(), testMeasurement(), "t", 5)
	if err != nil || !ok {
		t.Fatalf("WriteWithRetry() = %v, %v, want true, nil", ok, err)
	}
	if w.calls != 1 {
		t.Errorf("attempts = %d, want 1", w.calls)
	}
	if len(s.delays) != 0 {
		t.Errorf("delays = %v, want none", s.delays)
	}
}

func TestWriteWithRetry_Exhausted(t *testing.T) {
	for _, maxRetries := range []int{1, 2, 5, 9} {
		w := &scriptedWriter{results: []result{{false, errStore}}}
		s := &recordingSleep{}
		r := NewRetrier(w, WithSleep(s.sleep))

		ok, err := r.WriteWithRetry(context.Background(), testMeasurement(), "t", maxRetries)
		if ok {
			t.Errorf("maxRetries=%d: WriteWithRetry() = true, want false", maxRetries)
		}
		if !errors.Is(err, ErrRetriesExhausted) {
			t.Errorf("maxRetries=%d: error = %v, want ErrRetriesExhausted", maxRetries, err)
		}
		if !errors.Is(err, errStore) {
			t.Errorf("maxRetries=%d: error = %v, want last attempt error", maxRetries, err)
		}
		if w.calls > maxRetries {
			t.Errorf("maxRetries=%d: attempts = %d, exceeds budget", maxRetries, w.calls)
		}
		for _, d := range s.delays {
			if d > MaxDelay {
				t.Errorf("maxRetries=%d: delay %v exceeds %v", maxRetries, d, MaxDelay)
			}
		}
	}
}

func TestWriteWithRetry_FullDelaySchedule(t *testing.T) {
	w := &scriptedWriter{results: []result{{false, errStore}}}
	s := &recordingSleep{}
	r := NewRetrier(w, WithSleep(s.sleep))

	_, err := r.WriteWithRetry(context.Background(), testMeasurement(), "t", 9)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("WriteWithRetry() error = %v, want ErrRetriesExhausted", err)
	}

	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 32 * time.Second,
	}
	if len(s.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", s.delays, want)
	}
	for i := range want {
		if s.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, s.delays[i], want[i])
		}
	}
}

func TestWriteWithRetry_AtLeastOneAttempt(t *testing.T) {
	for _, maxRetries := range []int{-1, 0} {
		w := &scriptedWriter{results: []result{{true, nil}}}
		r := NewRetrier(w, WithSleep((&recordingSleep{}).sleep))

		ok, err := r.WriteWithRetry(context.Background(), testMeasurement(), "t", maxRetries)
		if err != nil || !ok {
			t.Errorf("maxRetries=%d: WriteWithRetry() = %v, %v, want true, nil", maxRetries, ok, err)
		}
		if w.calls != 1 {
			t.Errorf("maxRetries=%d: attempts = %d, want 1", maxRetries, w.calls)
		}
	}
}

func TestWriteWithRetry_UnacknowledgedIsFailure(t *testing.T) {
	w := &scriptedWriter{results: []result{{false, nil}}}
	r := NewRetrier(w, WithSleep((&recordingSleep{}).sleep))

	ok, err := r.WriteWithRetry(context.Background(), testMeasurement(), "t", 3)
	if ok {
		t.Error("WriteWithRetry() = true, want false")
	}
	if !errors.Is(err, ErrNotAcknowledged) {
		t.Errorf("WriteWithRetry() error = %v, want ErrNotAcknowledged", err)
	}
	if w.calls != 2 {
		t.Errorf("attempts = %d, want 2", w.calls)
	}
}

func TestWriteWithRetry_CancelledDuringSleep(t *testing.T) {
	w := &scriptedWriter{results: []result{{false, errStore}}}
	r := NewRetrier(w)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	ok, err := r.WriteWithRetry(ctx, testMeasurement(), "t", 10)
	if ok {
		t.Error("WriteWithRetry() = true, want false")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WriteWithRetry() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("WriteWithRetry() took %v, want the 1s sleep cut short", elapsed)
	}
	if w.calls != 1 {
		t.Errorf("attempts = %d, want 1", w.calls)
	}
}

// cancellingWriter cancels the caller's context mid-write, as a shutdown
// arriving during an HTTP request would.
type cancellingWriter struct {
	cancel context.CancelFunc
	calls  int
}

func (w *cancellingWriter) Write(ctx context.Context, _ measurement.Measurement, _ string) (bool, error) {
	w.calls++
	w.cancel()
	return false, fmt.Errorf("posting write: %w", ctx.Err())
}

// countingLogger counts warnings.
type countingLogger struct {
	warns int
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Warn(string, ...any)  { l.warns++ }

func TestWriteWithRetry_CancelledDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &cancellingWriter{cancel: cancel}
	sleep := &recordingSleep{}
	logger := &countingLogger{}
	r := NewRetrier(w, WithSleep(sleep.sleep), WithLogger(logger))

	ok, err := r.WriteWithRetry(ctx, testMeasurement(), "t", 10)
	if ok {
		t.Error("WriteWithRetry() = true, want false")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WriteWithRetry() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("WriteWithRetry() error = %v, want no exhaustion on cancel", err)
	}
	if w.calls != 1 {
		t.Errorf("attempts = %d, want 1", w.calls)
	}
	if len(sleep.delays) != 0 {
		t.Errorf("sleeps = %v, want none after cancellation", sleep.delays)
	}
	if logger.warns != 0 {
		t.Errorf("retry warnings = %d, want 0", logger.warns)
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() error = %v, want context.Canceled", err)
	}
}
