// Package sqlitekv stores economy records in a single SQLite key/value table.
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hustle/internal/kv"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Batcher = (*Store)(nil)
)

// Store provides SQLite-backed key/value persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the database file at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &Store{sqlDB: sqlDB}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv_records (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.sqlDB.Exec(stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv_records WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

const upsertSQL = `
INSERT INTO kv_records (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.sqlDB.ExecContext(ctx, upsertSQL, key, value, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SetMany writes all entries in one transaction.
func (s *Store) SetMany(ctx context.Context, entries []kv.Entry) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixMilli()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, upsertSQL, e.Key, e.Value, now); err != nil {
			return fmt.Errorf("set %s: %w", e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]kv.Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT key, value
FROM kv_records
WHERE substr(key, 1, ?) = ?
ORDER BY key
`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	defer rows.Close()

	out := make([]kv.Entry, 0)
	for rows.Next() {
		var e kv.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Claim takes an exclusive lock on a sidecar file next to path. A second
// serving process gets kv.ErrOwned instead of running its own engine over the
// same profiles. The lock lasts until release is called or the process exits.
func Claim(ctx context.Context, path string) (release func() error, err error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	lockPath := filepath.Clean(path) + ".owner"
	sqlDB, err := sql.Open("sqlite", lockPath)
	if err != nil {
		return nil, fmt.Errorf("open owner lock: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open owner lock: %w", err)
	}
	fail := func(err error) (func() error, error) {
		_ = conn.Close()
		_ = sqlDB.Close()
		if isBusy(err) {
			return nil, fmt.Errorf("%w: %s", kv.ErrOwned, path)
		}
		return nil, fmt.Errorf("claim %s: %w", path, err)
	}

	// In exclusive locking mode the first write takes the file lock and
	// keeps it for the life of the connection.
	for _, stmt := range []string{
		`PRAGMA busy_timeout = 0`,
		`PRAGMA locking_mode = EXCLUSIVE`,
		`CREATE TABLE IF NOT EXISTS owner (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			pid INTEGER NOT NULL,
			claimed_at INTEGER NOT NULL
		)`,
	} {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fail(err)
		}
	}
	if _, err := conn.ExecContext(ctx, `INSERT OR REPLACE INTO owner (id, pid, claimed_at) VALUES (1, ?, ?)`,
		os.Getpid(), time.Now().UTC().UnixMilli()); err != nil {
		return fail(err)
	}
	return func() error {
		return errors.Join(conn.Close(), sqlDB.Close())
	}, nil
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	code := serr.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
