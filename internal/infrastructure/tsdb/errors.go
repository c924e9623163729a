package tsdb

import "errors"

// Sentinel errors for time-series store operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, tsdb.ErrWriteFailed) {
//	    // retry later
//	}
var (
	// ErrInvalidURL indicates the configured write endpoint is unusable.
	ErrInvalidURL = errors.New("tsdb: invalid write URL")

	// ErrWriteFailed indicates a single write attempt failed.
	ErrWriteFailed = errors.New("tsdb: write failed")

	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("tsdb: client closed")
)
