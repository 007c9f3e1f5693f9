// Package kv defines the flat key/value persistence contract the economy engine
// runs on. Backends offer single-key durability only; callers own any
// multi-key consistency.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates a key has never been written.
	ErrNotFound = errors.New("key not found")
	// ErrOwned is returned when another process already serves the store.
	ErrOwned = errors.New("store is owned by another process")
)

// Entry is one key/value pair returned by a prefix scan or written in a batch.
type Entry struct {
	Key   string
	Value []byte
}

// Store captures the operations the engine needs from a backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	ScanPrefix(ctx context.Context, prefix string) ([]Entry, error)
}

// Batcher is implemented by backends able to write several keys in one
// all-or-nothing step.
type Batcher interface {
	SetMany(ctx context.Context, entries []Entry) error
}
