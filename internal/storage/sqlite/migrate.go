package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsFS holds the ordered schema changes. Each file pair is applied
// at most once; the applied version lives in schema_migrations.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to the latest version. It is idempotent:
// running it against an up-to-date database is a no-op.
func Migrate(db *sql.DB) (uint, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("Migrate: up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("Migrate: version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("Migrate: schema version %d is dirty", version)
	}
	// m.Close is deliberately not called: it would close db as well.
	return version, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("Migrate: open source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("Migrate: open driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("Migrate: init: %w", err)
	}
	return m, nil
}
