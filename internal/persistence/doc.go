// Package persistence writes measurements to the time-series store with
// bounded, exponentially backed-off retries.
//
// The store itself is reached through a Writer. Three drivers implement it:
// tsdb (HTTP line-protocol endpoint), influxdb (InfluxDB v2 client) and
// database (SQLite). Retrier wraps any of them.
//
// # Retry policy
//
// Attempts are counted from 1. After a failed attempt the counter is
// incremented; once it reaches maxRetries the last error is returned
// wrapped in ErrRetriesExhausted. Otherwise the retrier sleeps and tries
// again. The first sleep is 1s and each later one doubles, capped at 32s:
//
//	attempt 1 fails → sleep 1s → attempt 2 fails → sleep 2s → ... → sleep 32s
//
// So at most maxRetries attempts are made (at least one, whatever
// maxRetries says) and no success is ever retried.
//
// # Usage
//
//	r := persistence.NewRetrier(writer, persistence.WithLogger(logger))
//	ok, err := r.WriteWithRetry(ctx, m, cfg.Store.Table, cfg.Store.MaxRetries)
//	if errors.Is(err, persistence.ErrRetriesExhausted) {
//	    // measurement is dropped
//	}
package persistence
