// Package sqlstore is a durable cachestorage.Provider backed by a SQL table.
// SQLite (modernc.org/sqlite) is the default; PostgreSQL (pgx) lets several
// edge instances share a cache.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/choirsync/internal/cachestorage"
	"github.com/dmitrijs2005/choirsync/internal/cachestorage/provider/sqlstore/migrations"
	"github.com/dmitrijs2005/choirsync/internal/dbx"
)

var _ cachestorage.Provider = (*Store)(nil)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driver() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

// Store keeps entries in the cache_entries table.
type Store struct {
	db      dbx.DBTX
	closer  func() error
	dialect Dialect
}

// Open connects to dsn and migrates the schema.
func Open(ctx context.Context, d Dialect, dsn string) (*Store, error) {
	if d != SQLite && d != Postgres {
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}
	db, err := sql.Open(d.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if d == SQLite {
		// one connection so that ":memory:" is a single database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := RunMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	s := New(db, d)
	s.closer = db.Close
	return s, nil
}

// New wraps an already migrated database. Close does not close db.
func New(db dbx.DBTX, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

func RunMigrations(ctx context.Context, db *sql.DB, d Dialect) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(d.gooseDialect()); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, string(d))
}

func (s *Store) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	return dbx.Rebind(q)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM cache_entries WHERE key = ?`), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry[%s]: %w", key, err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	q := `INSERT INTO cache_entries(key, value, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, s.rebind(q), key, value); err != nil {
		return fmt.Errorf("failed to set cache entry[%s]: %w", key, err)
	}
	return nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM cache_entries WHERE key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete cache entry[%s]: %w", key, err)
	}
	return nil
}

// Prefix matching uses substr rather than LIKE: SQLite's LIKE folds ASCII
// case and URLs may contain the LIKE wildcards.
const prefixClause = ` WHERE substr(key, 1, ?) = ?`

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT key FROM cache_entries`+prefixClause),
		utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	keys, err := dbx.Collect(rows, dbx.ScanString)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	return keys, nil
}

func (s *Store) DelPrefix(ctx context.Context, prefix string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM cache_entries`+prefixClause),
		utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return fmt.Errorf("failed to delete cache entries: %w", err)
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
