package pipeline

import "errors"

// Domain-specific errors for pipeline operations.
var (
	// ErrSubscribe is returned by Run when the subscription could not be
	// established. It is not retried.
	ErrSubscribe = errors.New("pipeline: subscribe failed")

	// ErrTransport is returned by Run when the broker connection failed
	// while draining.
	ErrTransport = errors.New("pipeline: transport failed")

	// ErrQueueClosed is returned by Dequeue once the queue is closed and
	// empty, and by Enqueue after Close.
	ErrQueueClosed = errors.New("pipeline: queue closed")

	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("pipeline: already started")
)
