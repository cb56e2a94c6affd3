// Package database provides SQLite connectivity for Climate Core.
//
// This package manages:
//   - The connection, with WAL mode so API reads do not block sample inserts
//   - Schema migrations read from an fs.FS (normally migrations.FS)
//   - A single pooled connection matching SQLite's single writer
//
// All queries elsewhere in the module use parameterised statements and the
// database file is restricted to 0600.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be NULLABLE or carry a DEFAULT,
// and every .up.sql file ships with a .down.sql.
package database
