package game

import (
	"slices"
	"sync"
)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lockTable hands out one mutex per identity. Entries are refcounted and
// dropped once no caller holds or waits on them.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

func (t *lockTable) acquire(id string) *lockEntry {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		e = &lockEntry{}
		t.entries[id] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return e
}

func (t *lockTable) release(id string, e *lockEntry) {
	e.mu.Unlock()

	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, id)
	}
	t.mu.Unlock()
}

// lock takes id's mutex and returns the matching unlock.
func (t *lockTable) lock(id string) func() {
	e := t.acquire(id)
	return func() { t.release(id, e) }
}

// lockPair takes both mutexes in lexicographic order so opposite-direction
// transfers cannot deadlock. Equal ids lock once.
func (t *lockTable) lockPair(a, b string) func() {
	return t.lockAll(a, b)
}

// lockAll takes every distinct id's mutex in lexicographic order and returns
// an unlock that releases them in reverse.
func (t *lockTable) lockAll(ids ...string) func() {
	sorted := append([]string(nil), ids...)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for _, id := range sorted {
		unlocks = append(unlocks, t.lock(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
