// Package pgkv keeps economy records in a Postgres key/value table.
package pgkv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hustle/internal/kv"
)

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Batcher = (*Store)(nil)
)

// Store wraps a pgx pool. The pool is owned by the caller.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store after ensuring the schema exists.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS economy;`,
		`CREATE TABLE IF NOT EXISTS economy.kv_records (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS kv_records_key_prefix_idx ON economy.kv_records (key text_pattern_ops);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value
		FROM economy.kv_records
		WHERE key = $1
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

const upsertSQL = `
	INSERT INTO economy.kv_records (key, value, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SetMany writes every entry inside a single read-committed transaction.
func (s *Store) SetMany(ctx context.Context, entries []kv.Entry) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(upsertSQL, e.Key, e.Value)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]kv.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, value
		FROM economy.kv_records
		WHERE starts_with(key, $1)
		ORDER BY key
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	defer rows.Close()

	out := make([]kv.Entry, 0)
	for rows.Next() {
		var e kv.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ownerLockKey is the session advisory lock held by the serving process.
const ownerLockKey int64 = 0x6875_7374_6c65

// Claim holds a session advisory lock on a dedicated pool connection. A
// second serving process gets kv.ErrOwned. Release unlocks and returns the
// connection to the pool.
func Claim(ctx context.Context, pool *pgxpool.Pool) (release func() error, err error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim store: %w", err)
	}
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, ownerLockKey).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("claim store: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, kv.ErrOwned
	}
	return func() error {
		defer conn.Release()
		if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, ownerLockKey); err != nil {
			return fmt.Errorf("release store: %w", err)
		}
		return nil
	}, nil
}
