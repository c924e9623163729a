package measurement

import "errors"

// ErrDecode is returned when a payload cannot be turned into a Measurement.
// Use errors.Is() to check for it; the wrapped error carries the detail.
var ErrDecode = errors.New("measurement: decode failed")
