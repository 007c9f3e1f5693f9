package game

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hustle/internal/kv/memkv"
)

func TestConcurrentWorkLosesNoUpdates(t *testing.T) {
	store := memkv.New()
	// Every read of the clock moves an hour so each call is past its cooldown.
	var ticks atomic.Int64
	clock := func() time.Time {
		return epoch.Add(time.Duration(ticks.Add(1)) * time.Hour)
	}
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(clock), WithRoller(NewRoller(42)))

	const n = 100
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		earned int64
		failed int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Work(context.Background(), ActionInput{UserID: "grinder"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil || !out.Success {
				failed++
				return
			}
			earned += out.Effect.Amount
		}()
	}
	wg.Wait()

	if failed != 0 {
		t.Fatalf("%d work calls failed", failed)
	}
	out, err := svc.Profile(context.Background(), "grinder")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if out.Profile.Balance != earned {
		t.Fatalf("final balance %d, sum of earnings %d", out.Profile.Balance, earned)
	}
	if svc.locks.size() != 0 {
		t.Fatalf("lock table leaked %d entries", svc.locks.size())
	}
}

func TestOppositeGiftsDoNotDeadlock(t *testing.T) {
	h := newHarness(t)
	h.seed(t, Profile{UserID: "alice", Balance: 10_000})
	h.seed(t, Profile{UserID: "bob", Balance: 10_000})

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = h.svc.Gift(context.Background(), ActionInput{UserID: "alice", TargetID: "bob", Amount: 7})
			}()
			go func() {
				defer wg.Done()
				_, _ = h.svc.Gift(context.Background(), ActionInput{UserID: "bob", TargetID: "alice", Amount: 3})
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("opposite-direction gifts deadlocked")
	}

	a, b := h.stored(t, "alice"), h.stored(t, "bob")
	if a.Balance+b.Balance != 20_000 {
		t.Fatalf("money not conserved: %d + %d", a.Balance, b.Balance)
	}
	if a.Balance != 10_000-200*4 {
		t.Fatalf("alice balance %d, want %d", a.Balance, 10_000-200*4)
	}
}

func TestOverlappingHeistsDoNotDeadlock(t *testing.T) {
	h := newHarness(t)
	crews := [][]string{{"a", "b", "c"}, {"c", "b", "a"}, {"b", "c", "a"}, {"c", "a"}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			crew := crews[i%len(crews)]
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = h.svc.Heist(context.Background(), ActionInput{UserID: crew[0], Crew: crew[1:]})
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("overlapping heists deadlocked")
	}
	if n := h.svc.locks.size(); n != 0 {
		t.Fatalf("lock table kept %d entries", n)
	}
}

func TestLockTableReleasesEntries(t *testing.T) {
	table := newLockTable()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := table.lockPair("x", "y")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := table.lockPair("y", "x")
			unlock()
		}()
	}
	wg.Wait()
	if table.size() != 0 {
		t.Fatalf("expected empty table, got %d entries", table.size())
	}

	unlock := table.lockPair("same", "same")
	if table.size() != 1 {
		t.Fatalf("self pair should take one entry")
	}
	unlock()
}
