package game

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"hustle/internal/kv/memkv"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// scriptedRoller replays queued draws, falling back to 0.5 and 0.
type scriptedRoller struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
	calls  int
}

func (r *scriptedRoller) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRoller) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func (r *scriptedRoller) queue(floats []float64, ints ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.floats = append(r.floats, floats...)
	r.ints = append(r.ints, ints...)
}

func (r *scriptedRoller) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fixedOracle map[string]int64

func (o fixedOracle) Price(_ context.Context, symbol string) (int64, error) {
	p, ok := o[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrStockNotFound, symbol)
	}
	return p, nil
}

type harness struct {
	svc   *Service
	store *memkv.Store
	clock *fakeClock
	roll  *scriptedRoller
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store: memkv.New(),
		clock: &fakeClock{t: epoch},
		roll:  &scriptedRoller{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []Option{WithClock(h.clock.Now), WithRoller(h.roll)}
	h.svc = NewService(h.store, logger, append(base, opts...)...)
	return h
}

// seed writes p straight to the store, filling the fields a fresh profile has.
func (h *harness) seed(t *testing.T, p Profile) {
	t.Helper()
	if p.Job == "" {
		p.Job = JobHomeless
	}
	if p.Level == 0 {
		p.Level = 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = h.clock.Now()
	}
	raw, err := encodeProfile(p)
	if err != nil {
		t.Fatalf("encode %s: %v", p.UserID, err)
	}
	if err := h.store.Set(context.Background(), profileKey(p.UserID), raw); err != nil {
		t.Fatalf("seed %s: %v", p.UserID, err)
	}
}

// stored reads the persisted record without any lazy correction.
func (h *harness) stored(t *testing.T, id string) Profile {
	t.Helper()
	raw, err := h.store.Get(context.Background(), profileKey(id))
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	p, err := decodeProfile(id, raw)
	if err != nil {
		t.Fatalf("decode %s: %v", id, err)
	}
	return p
}

func expectDenied(t *testing.T, out Outcome, err error, want Reason) {
	t.Helper()
	if err != nil {
		t.Fatalf("expected denial %q, got error %v", want, err)
	}
	if out.Success || out.Reason != want {
		t.Fatalf("expected denial %q, got success=%v reason=%q", want, out.Success, out.Reason)
	}
}

func expectApplied(t *testing.T, out Outcome, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success, denied with %q", out.Reason)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
