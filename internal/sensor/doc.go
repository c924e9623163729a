// Package sensor simulates a soil-moisture probe.
//
// A Sensor produces a random walk around a seed reading, moving by a step
// drawn from [-0.3, 0.3) on every call to Read. It stands in for field
// hardware when exercising the ingester end to end.
package sensor
