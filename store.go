package postadmin

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store owns the posts, categories and users tables. It runs on SQLite by
// default and on Postgres when given a postgres:// URL.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// WAL lets readers run next to the single writer; busy_timeout makes
	// writers queue instead of failing with SQLITE_BUSY. Pragmas go in the DSN
	// so every pooled connection gets them, foreign_keys in particular.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	return newStore(db, sqliteDialect)
}

// NewPostgresStore connects to the Postgres database at url through the pgx
// database/sql driver.
func NewPostgresStore(url string) (*Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return newStore(db, postgresDialect)
}

// OpenStore picks the backend from driver ("sqlite" or "postgres").
func OpenStore(driver, path, url string) (*Store, error) {
	switch driver {
	case "", "sqlite":
		return NewStore(path)
	case "postgres", "pgx":
		if url == "" {
			return nil, fmt.Errorf("postadmin: DATABASE_URL is required for the postgres driver")
		}
		return NewPostgresStore(url)
	}
	return nil, fmt.Errorf("postadmin: unknown database driver %q", driver)
}

func newStore(db *sql.DB, d dialect) (*Store, error) {
	s := &Store{db: db, dialect: d}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// bind rewrites ? placeholders for the active dialect.
func (s *Store) bind(q string) string {
	return s.dialect.bind(q)
}

// now is the timestamp written for created_at/updated_at, truncated to what
// both backends store.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) count(ctx context.Context, q queryer, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, s.bind(query), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
