// Package database provides SQLite storage for pinctl Core.
//
// This package manages:
//   - Connection setup with WAL mode, busy timeout and foreign keys
//   - Embedded schema migrations (see the migrations package)
//   - Transaction helpers shared by the repositories
//
// The devices, commands and logs tables are STRICT. Foreign keys are on,
// so deleting a device cascades to its commands; the logs table
// deliberately carries no foreign keys.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
