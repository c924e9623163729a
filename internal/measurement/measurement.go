package measurement

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Measurement is one soil-moisture reading.
//
// Time is nanoseconds since the Unix epoch. ID is unique per reading and is
// assigned once, by New; a decoded Measurement keeps the ID it was sent with.
type Measurement struct {
	Time     int64   `json:"time"`
	Data     float32 `json:"data"`
	Unit     string  `json:"unit"`
	ID       string  `json:"id"`
	SensorID string  `json:"sensor_id"`
	Location string  `json:"location"`
}

// payload mirrors Measurement with pointer fields so that Decode can tell a
// missing field from a zero value.
type payload struct {
	Time     *int64   `json:"time"`
	Data     *float32 `json:"data"`
	Unit     *string  `json:"unit"`
	ID       *string  `json:"id"`
	SensorID *string  `json:"sensor_id"`
	Location *string  `json:"location"`
}

// New creates a Measurement stamped with the current wall-clock time and a
// fresh random (v4) UUID.
//
// Example:
//
//	m := measurement.New(30.0, "cb", "sensor_01", "location_01")
func New(data float32, unit, sensorID, location string) Measurement {
	return Measurement{
		Time:     time.Now().UnixNano(),
		Data:     data,
		Unit:     unit,
		ID:       uuid.NewString(),
		SensorID: sensorID,
		Location: location,
	}
}

// Decode parses a JSON payload produced by Encode.
//
// All six fields must be present and non-null; unknown fields are ignored.
// Every failure wraps ErrDecode.
func Decode(data []byte) (Measurement, error) {
	if !utf8.Valid(data) {
		return Measurement{}, fmt.Errorf("%w: payload is not valid UTF-8", ErrDecode)
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Measurement{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var missing []string
	if p.Time == nil {
		missing = append(missing, "time")
	}
	if p.Data == nil {
		missing = append(missing, "data")
	}
	if p.Unit == nil {
		missing = append(missing, "unit")
	}
	if p.ID == nil {
		missing = append(missing, "id")
	}
	if p.SensorID == nil {
		missing = append(missing, "sensor_id")
	}
	if p.Location == nil {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return Measurement{}, fmt.Errorf("%w: missing field(s) %s", ErrDecode, strings.Join(missing, ", "))
	}

	return Measurement{
		Time:     *p.Time,
		Data:     *p.Data,
		Unit:     *p.Unit,
		ID:       *p.ID,
		SensorID: *p.SensorID,
		Location: *p.Location,
	}, nil
}

// Encode returns the JSON payload for m.
//
// It only fails for values JSON cannot represent (NaN or ±Inf data).
func (m Measurement) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding measurement %s: %w", m.ID, err)
	}
	return b, nil
}

// WriteStatement formats m as a line-protocol statement for table:
//
//	<table>,id=<id>,sensor_id=<sensor_id>,location=<location>,unit=<unit> data=<data> <time>
//
// data is always rendered with exactly five decimal places. Tag values are
// escaped so that a payload cannot break out of its line.
func (m Measurement) WriteStatement(table string) string {
	var b strings.Builder

	b.WriteString(escapeMeasurement(table))
	b.WriteString(",id=")
	b.WriteString(escapeTag(m.ID))
	b.WriteString(",sensor_id=")
	b.WriteString(escapeTag(m.SensorID))
	b.WriteString(",location=")
	b.WriteString(escapeTag(m.Location))
	b.WriteString(",unit=")
	b.WriteString(escapeTag(m.Unit))
	b.WriteString(" data=")
	b.WriteString(strconv.FormatFloat(float64(m.Data), 'f', 5, 32))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(m.Time, 10))

	return b.String()
}

// escapeTag escapes special characters in tag values for line protocol.
// Commas, equals signs, and spaces must be backslash-escaped.
// Newlines are stripped to prevent line protocol injection.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes special characters in measurement names.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
