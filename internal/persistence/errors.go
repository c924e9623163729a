package persistence

import "errors"

// Domain-specific errors for persistence operations.
var (
	// ErrRetriesExhausted is returned when every allowed attempt failed.
	// The last attempt's error is wrapped alongside it.
	ErrRetriesExhausted = errors.New("persistence: retries exhausted")

	// ErrNotAcknowledged is the attempt error used when a Writer reports
	// neither success nor an error.
	ErrNotAcknowledged = errors.New("persistence: write not acknowledged")
)
