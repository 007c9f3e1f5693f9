// Package backend opens the kv.Store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"hustle/internal/config"
	"hustle/internal/db"
	"hustle/internal/kv"
	"hustle/internal/kv/memkv"
	"hustle/internal/kv/pgkv"
	"hustle/internal/kv/sqlitekv"
)

// Open returns the configured store and a func that releases it.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (kv.Store, func(), error) {
	return open(ctx, cfg, logger, false)
}

// OpenOwned is Open for serving processes: it also claims the store so a
// second engine over the same profiles fails with kv.ErrOwned. Memory stores
// are private to the process and need no claim.
func OpenOwned(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (kv.Store, func(), error) {
	return open(ctx, cfg, logger, true)
}

func open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger, owned bool) (kv.Store, func(), error) {
	switch cfg.Backend {
	case "memory":
		logger.Warn("using in-memory store, nothing will survive a restart")
		return memkv.New(), func() {}, nil
	case "sqlite", "":
		release := func() error { return nil }
		if owned {
			r, err := sqlitekv.Claim(ctx, cfg.SQLitePath)
			if err != nil {
				return nil, nil, err
			}
			release = r
		}
		store, err := sqlitekv.Open(cfg.SQLitePath)
		if err != nil {
			_ = release()
			return nil, nil, err
		}
		logger.Info("store opened", "backend", "sqlite", "path", cfg.SQLitePath, "owned", owned)
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("close sqlite store", "err", err)
			}
			if err := release(); err != nil {
				logger.Error("release sqlite store", "err", err)
			}
		}, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, nil, err
		}
		release := func() error { return nil }
		if owned {
			r, err := pgkv.Claim(ctx, pool)
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			release = r
		}
		store, err := pgkv.New(ctx, pool)
		if err != nil {
			_ = release()
			pool.Close()
			return nil, nil, err
		}
		logger.Info("store opened", "backend", "postgres", "max_conns", cfg.PGMaxConns, "owned", owned)
		return store, func() {
			if err := release(); err != nil {
				logger.Error("release postgres store", "err", err)
			}
			pool.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
