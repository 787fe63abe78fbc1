// Package dbmigrate wires rubenv/sql-migrate's embedded migration
// source to the user store database, driven by signctl's
// migrate_init/migrate_upgrade/migrate_downgrade/migrate_history
// subcommands.
package dbmigrate

import (
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var source = migrate.EmbedFileSystemMigrationSource{
	FileSystem: migrationFiles,
	Root:       "migrations",
}

// Migrator applies and inspects the embedded migration set against a
// Postgres database.
type Migrator struct {
	db *sql.DB
}

// Open opens a plain *sql.DB (not sqlx) for migration purposes, kept
// independent of auth.UserStore so signctl can run migrations before
// any user-store code path assumes a ready schema.
func Open(databaseURL string) (*Migrator, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("dbmigrate: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("dbmigrate: ping database: %w", err)
	}
	return &Migrator{db: db}, nil
}

// Close releases the underlying connection.
func (m *Migrator) Close() error { return m.db.Close() }

// Init applies migration 0001 only, establishing the migration
// bookkeeping table and the initial schema.
func (m *Migrator) Init() (int, error) {
	return migrate.ExecMax(m.db, "postgres", source, migrate.Up, 1)
}

// Upgrade applies all pending Up migrations.
func (m *Migrator) Upgrade() (int, error) {
	return migrate.Exec(m.db, "postgres", source, migrate.Up)
}

// Downgrade reverts the most recently applied migration.
func (m *Migrator) Downgrade() (int, error) {
	return migrate.ExecMax(m.db, "postgres", source, migrate.Down, 1)
}

// History returns every migration record applied so far, most recent
// last.
func (m *Migrator) History() ([]*migrate.MigrationRecord, error) {
	return migrate.GetMigrationRecords(m.db, "postgres")
}
