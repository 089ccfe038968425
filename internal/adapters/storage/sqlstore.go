package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/samber/oops"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Dialect selects the SQL backend.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const pingTimeout = 10 * time.Second

// SQLStore keeps records in a single records table on SQLite or PostgreSQL.
type SQLStore struct {
	dialect Dialect
	db      *sql.DB
}

// OpenSQL applies pending migrations, then opens the database for dialect.
// For SQLite dsn is a file path whose directory is created if needed.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	m, err := OpenMigrator(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := m.Up(); err != nil {
		_ = m.Close()
		return nil, oops.With("dialect", dialect).Wrap(err)
	}
	if err := m.Close(); err != nil {
		return nil, err
	}

	db, err := openDB(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	return &SQLStore{dialect: dialect, db: db}, nil
}

// OpenMigrator opens a dedicated handle on dsn for schema changes.
func OpenMigrator(ctx context.Context, dialect Dialect, dsn string) (*Migrator, error) {
	db, err := openDB(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	m, err := NewMigrator(dialect, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func openDB(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	var driver string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
		if !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, oops.Code("STORE_OPEN").With("path", dsn).Wrap(fmt.Errorf("%w: create sqlite directory: %w", ErrPersistence, err))
			}
		}
	case DialectPostgres:
		driver = "pgx"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, oops.Code("STORE_OPEN").With("dialect", dialect).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, oops.Code("STORE_PING").With("dialect", dialect).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return db, nil
}

func (s *SQLStore) bind(pos int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (s *SQLStore) Read(ctx context.Context, key string) (Record, error) {
	q := "SELECT key, kind, body FROM records WHERE key = " + s.bind(1)
	var (
		rec  Record
		kind string
		body string
	)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&rec.Key, &kind, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Record{}, oops.Code("STORE_READ").With("key", key).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	rec.Kind = Kind(kind)
	rec.Body = []byte(body)
	return rec, nil
}

func (s *SQLStore) ReadAll(ctx context.Context, kind Kind) ([]Record, error) {
	q := "SELECT key, body FROM records WHERE kind = " + s.bind(1) + " ORDER BY length(key), key"
	rows, err := s.db.QueryContext(ctx, q, string(kind))
	if err != nil {
		return nil, oops.Code("STORE_READALL").With("kind", kind).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, oops.Code("STORE_READALL").With("kind", kind).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
		}
		out = append(out, Record{Key: key, Kind: kind, Body: []byte(body)})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("STORE_READALL").With("kind", kind).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return out, nil
}

func (s *SQLStore) Write(ctx context.Context, rec Record) error {
	q := fmt.Sprintf(`INSERT INTO records (key, kind, body, updated_at) VALUES (%s, %s, %s, %s)
		ON CONFLICT (key) DO UPDATE SET kind = excluded.kind, body = excluded.body, updated_at = excluded.updated_at`,
		s.bind(1), s.bind(2), s.bind(3), s.bind(4))
	if _, err := s.db.ExecContext(ctx, q, rec.Key, string(rec.Kind), string(rec.Body), time.Now().UTC()); err != nil {
		return oops.Code("STORE_WRITE").With("key", rec.Key).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE key = "+s.bind(1), key); err != nil {
		return oops.Code("STORE_DELETE").With("key", key).Wrap(fmt.Errorf("%w: %w", ErrPersistence, err))
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
