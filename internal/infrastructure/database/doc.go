// Package database provides the local SQLite store for the classroom controller.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Schema migrations from an fs.FS of YYYYMMDD_HHMMSS_name.up.sql/.down.sql files
//   - Health checks for the API
//
// The store holds two things: the persisted room clock and the hourly
// status history. Both are written by a single goroutine at a time, so the
// pool is limited to one connection.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
