// Package pipeline moves soil-moisture readings from the broker to the
// time-series store.
//
// # Architecture
//
// Run subscribes to the configured topic, waits for the broker's SUBACK,
// and then runs two goroutines joined by a bounded FIFO queue:
//
//	broker → Poll → Decode → Queue (queue_size) → WriteWithRetry → store
//	         ingestion                             persistence
//
// Ingestion acknowledges a message to the broker only once the decoded
// reading is in the queue, so a crash before that point leads to
// redelivery rather than loss. Payloads that cannot be decoded are logged,
// counted and acknowledged (dropped). A full queue blocks ingestion, which
// in turn stops the transport reading from the broker.
//
// Persistence writes each reading with bounded retries. A reading whose
// retries are exhausted is logged, counted and dropped; the worker moves
// on to the next one.
//
// # Lifecycle
//
//	Idle → Subscribed → Draining → Stopped
//	                        └────→ Terminated (transport error)
//
// Cancelling the context passed to Run stops both goroutines at their next
// suspension point and Run returns nil. A transport error ends ingestion;
// the queue is then closed, persistence drains what is left, and Run
// returns the error.
package pipeline
