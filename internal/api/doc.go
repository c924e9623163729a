// Package api implements the HTTP status server for SoilSense Core.
//
// This package provides:
//   - GET /healthz: liveness, always 200 while the process serves HTTP
//   - GET /readyz: 200 only while the MQTT transport is connected and the
//     pipeline is draining, 503 otherwise
//   - GET /metrics: Prometheus exposition of the pipeline collectors
//   - Middleware stack (request ID, logging, recovery)
//
// The server carries no ingestion logic. It only reads state from the
// transport and the pipeline, so the ingester behaves identically with the
// status server disabled.
package api
