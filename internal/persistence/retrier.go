package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nerrad567/soilsense-core/internal/measurement"
)

// Writer performs a single write attempt against the store.
//
// Write returns true only when the store acknowledged the write.
type Writer interface {
	Write(ctx context.Context, m measurement.Measurement, table string) (bool, error)
}

// SleepFunc waits for d or until ctx ends, returning ctx.Err() in that case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Retrier retries failed writes with exponential backoff.
//
// Thread Safety:
//   - Safe for concurrent use if the Writer is. Each call keeps its own
//     Backoff.
type Retrier struct {
	writer Writer
	sleep  SleepFunc
	logger Logger
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithSleep replaces the real-time sleep, typically in tests.
func WithSleep(sleep SleepFunc) Option {
	return func(r *Retrier) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithLogger sets the logger used for per-attempt failures.
func WithLogger(logger Logger) Option {
	return func(r *Retrier) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRetrier wraps writer.
func NewRetrier(writer Writer, opts ...Option) *Retrier {
	r := &Retrier{
		writer: writer,
		sleep:  Sleep,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WriteWithRetry writes m to table, retrying failures.
//
// Parameters:
//   - ctx: Cancels the current attempt and any backoff sleep
//   - m: The measurement to write
//   - table: Destination table
//   - maxRetries: Attempt budget; values below 1 still allow one attempt
//
// Returns:
//   - bool: true once an attempt succeeded
//   - error: wrapping ErrRetriesExhausted and the last attempt's error, or
//     ctx.Err() if cancelled during an attempt or while waiting
func (r *Retrier) WriteWithRetry(ctx context.Context, m measurement.Measurement, table string, maxRetries int) (bool, error) {
	b := NewBackoff(maxRetries)

	for {
		err := r.attempt(ctx, m, table)
		if err == nil {
			return true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}

		attempt := b.Attempt()
		delay, ok := b.Next()
		if !ok {
			return false, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		r.logger.Warn("write failed, retrying",
			"id", m.ID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if err := r.sleep(ctx, delay); err != nil {
			return false, err
		}
	}
}

// attempt performs one write and folds an unacknowledged result into an error.
func (r *Retrier) attempt(ctx context.Context, m measurement.Measurement, table string) error {
	ok, err := r.writer.Write(ctx, m, table)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcknowledged
	}
	return nil
}

// Sleep waits for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
