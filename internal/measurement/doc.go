// Package measurement defines the soil-moisture reading that flows from the
// sensors, over MQTT, into the time-series store.
//
// A Measurement has two encodings:
//
//   - the JSON payload carried on the broker (Encode / Decode)
//   - the line-protocol statement sent to the store (WriteStatement)
//
// Both are pure functions of the value. Measurement is passed by value and
// never modified after New or Decode returns it.
package measurement
