package database

import (
	"context"
	"fmt"
	"regexp"

	"github.com/nerrad567/soilsense-core/internal/measurement"
)

// tableNamePattern matches identifiers that are safe to interpolate.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTable reports whether table can be used as a readings table.
func ValidateTable(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return nil
}

// EnsureTable creates the readings table if it does not exist.
//
// The measurement id is the primary key, so a reading redelivered by the
// broker is stored once.
func (db *DB) EnsureTable(ctx context.Context, table string) error {
	if err := ValidateTable(table); err != nil {
		return err
	}
	if _, ok := db.tables.Load(table); ok {
		return nil
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id        TEXT PRIMARY KEY,
			time      INTEGER NOT NULL,
			data      REAL NOT NULL,
			unit      TEXT NOT NULL,
			sensor_id TEXT NOT NULL,
			location  TEXT NOT NULL
		) STRICT`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_sensor_time ON %s (sensor_id, time)`, table, table),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", table, err)
		}
	}

	db.tables.Store(table, struct{}{})
	return nil
}

// Write stores one measurement in table, creating the table on first use.
//
// A measurement whose id is already stored is acknowledged without
// changing the existing row.
//
// Returns:
//   - bool: true once the row is stored (or was already present)
//   - error: ErrInvalidTable, or wrapping ErrWriteFailed
func (db *DB) Write(ctx context.Context, m measurement.Measurement, table string) (bool, error) {
	if err := db.EnsureTable(ctx, table); err != nil {
		return false, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	query := fmt.Sprintf(
		`INSERT OR IGNORE INTO %s (id, time, data, unit, sensor_id, location) VALUES (?, ?, ?, ?, ?, ?)`,
		table,
	)
	if _, err := db.ExecContext(ctx, query, m.ID, m.Time, float64(m.Data), m.Unit, m.SensorID, m.Location); err != nil {
		return false, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return true, nil
}
