// Package logging provides structured logging for SoilSense Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the ingester and the sensor
// publisher.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Colourised text output for development (github.com/lmittmann/tint)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "soilsense", "1.0.0")
//	logger.Info("subscribed", "topic", cfg.MQTT.Topic)
//	logger.Error("write failed", "error", err)
//
// Operators observe dropped payloads and exhausted writes only through these
// logs, so every drop is logged at warn or error level with the measurement
// id when one is known.
package logging
