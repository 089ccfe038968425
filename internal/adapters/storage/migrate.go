package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

// migrationsTable records the applied schema version.
const migrationsTable = "ranks_schema_migrations"

// Migrator applies the embedded schema for one dialect. It owns the
// handle it was given and closes it on Close.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator prepares the embedded migrations of dialect against db.
func NewMigrator(dialect Dialect, db *sql.DB) (*Migrator, error) {
	source, err := iofs.New(migrationFS, "migrations/"+string(dialect))
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("dialect", dialect).Wrap(err)
	}

	var driver database.Driver
	switch dialect {
	case DialectSQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: migrationsTable})
	case DialectPostgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: migrationsTable})
	default:
		_ = source.Close()
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}
	if err != nil {
		_ = source.Close()
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("dialect", dialect).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("dialect", dialect).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return nil
}

// Down rolls every migration back, dropping the records table.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return nil
}

// Version returns the applied version and whether the last migration
// failed part way. A fresh database reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Close releases the source and the database handle.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	}
	if dbErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}
