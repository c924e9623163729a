package persistence

import "time"

// Backoff constants.
const (
	// InitialDelay is the sleep after the first failed attempt.
	InitialDelay = 1 * time.Second

	// MaxDelay caps every sleep.
	MaxDelay = 32 * time.Second
)

// Backoff tracks one measurement's retry state.
//
// The zero value is not usable; call NewBackoff.
type Backoff struct {
	attempt    int
	delay      time.Duration
	maxRetries int
}

// NewBackoff returns the state before the first attempt has failed.
func NewBackoff(maxRetries int) *Backoff {
	return &Backoff{
		attempt:    1,
		delay:      InitialDelay,
		maxRetries: maxRetries,
	}
}

// Attempt returns the number of the attempt in progress, starting at 1.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Next records a failed attempt.
//
// It returns the delay to wait before the next attempt and true, or false
// when the attempt budget is spent.
func (b *Backoff) Next() (time.Duration, bool) {
	b.attempt++
	if b.attempt >= b.maxRetries {
		return 0, false
	}

	d := b.delay
	b.delay = min(b.delay*2, MaxDelay)
	return d, true
}
