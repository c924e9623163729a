package database

import "errors"

// Domain-specific errors for database operations.
var (
	// ErrInvalidTable is returned for table names that are not plain
	// SQL identifiers. Table names are interpolated into statements, so
	// nothing else is accepted.
	ErrInvalidTable = errors.New("database: invalid table name")

	// ErrWriteFailed is returned when a single write attempt fails.
	ErrWriteFailed = errors.New("database: write failed")
)
