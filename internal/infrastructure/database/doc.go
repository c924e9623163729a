// Package database provides the SQLite store driver for SoilSense Core.
//
// It is selected with store.driver "sqlite" and suits edge deployments
// where no time-series server is available.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Readings tables keyed by measurement id (broker redeliveries are
//     stored once)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - Row values use parameterised statements
//   - Table names are restricted to plain identifiers (ValidateTable)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Store.Path,
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.EnsureTable(ctx, cfg.Store.Table); err != nil {
//	    return err
//	}
//
//	ok, err := db.Write(ctx, m, cfg.Store.Table)
package database
