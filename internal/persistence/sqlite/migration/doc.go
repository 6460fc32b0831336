// Package migration applies versioned SQL schema changes to a SQLite database.
//
// Migration files are read from an fs.FS (typically an embed.FS compiled into
// the binary) and follow the naming convention {version}_{description}.sql,
// e.g. "001_initial_schema.sql". Applied versions are tracked in the
// schema_migrations table so each file runs exactly once, inside its own
// transaction.
//
// Example usage:
//
//	manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), ".", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
