// Package memkv is an in-process kv.Store used for tests and local runs
// without a database file.
package memkv

import (
	"context"
	"sort"
	"strings"
	"sync"

	"hustle/internal/kv"
)

var _ kv.Store = (*Store)(nil)

// Store keeps values in a map. It does not implement kv.Batcher.
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	failSet  map[string]error
	failScan error
	sets     int
}

func New() *Store {
	return &Store{
		data:    map[string][]byte{},
		failSet: map[string]error{},
	}
}

// FailSet makes every subsequent Set for key return err. A nil err clears it.
func (s *Store) FailSet(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failSet, key)
		return
	}
	s.failSet[key] = err
}

// FailScan makes ScanPrefix return err until cleared with nil.
func (s *Store) FailScan(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failScan = err
}

// SetCalls reports how many successful writes the store has accepted.
func (s *Store) SetCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failSet[key]; err != nil {
		return err
	}
	s.data[key] = append([]byte(nil), value...)
	s.sets++
	return nil
}

func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]kv.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failScan != nil {
		return nil, s.failScan
	}
	out := make([]kv.Entry, 0)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, kv.Entry{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
