package pipeline

import (
	"context"
	"sync"

	"github.com/nerrad567/soilsense-core/internal/measurement"
)

// Queue is a bounded FIFO of decoded measurements.
//
// Enqueue blocks while the queue is full and Dequeue blocks while it is
// empty; both give up when their context ends.
//
// Thread Safety:
//   - Enqueue, Dequeue, Len and Cap are safe for concurrent use.
//   - Close must be called by the producer, after its last Enqueue.
type Queue struct {
	items     chan measurement.Measurement
	closed    chan struct{}
	closeOnce sync.Once
}

// NewQueue returns an empty queue holding up to capacity items.
// Capacities below 1 are raised to 1.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		items:  make(chan measurement.Measurement, capacity),
		closed: make(chan struct{}),
	}
}

// Enqueue appends m, waiting for space if the queue is full.
//
// Returns:
//   - error: ctx.Err() if ctx ends first, ErrQueueClosed after Close
func (q *Queue) Enqueue(ctx context.Context, m measurement.Measurement) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.items <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest item, waiting for one if the queue is empty.
//
// Items enqueued before Close are still returned; once they are gone
// Dequeue returns ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (measurement.Measurement, error) {
	select {
	case m, ok := <-q.items:
		if !ok {
			return measurement.Measurement{}, ErrQueueClosed
		}
		return m, nil
	case <-ctx.Done():
		return measurement.Measurement{}, ctx.Err()
	}
}

// Close marks the end of input. It is idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
		close(q.items)
	})
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.items)
}
