package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"hustle/internal/auth"
	"hustle/internal/game"
)

func TestActionSendsHeadersAndBody(t *testing.T) {
	var gotAuth, gotIdem string
	var gotBody ActionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/actions/gift" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(game.Outcome{Success: true, Effect: game.Effect{Amount: -25, TargetAmount: 25}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	out, err := c.Action(context.Background(), "tok", "gift", ActionRequest{TargetID: "bob", Amount: 25}, "key-1")
	if err != nil {
		t.Fatalf("action: %v", err)
	}
	if !out.Success || out.Effect.TargetAmount != 25 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if gotAuth != "Bearer tok" || gotIdem != "key-1" {
		t.Fatalf("headers auth=%q idem=%q", gotAuth, gotIdem)
	}
	if gotBody.TargetID != "bob" || gotBody.Amount != 25 {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestDeniedActionDecodesReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":               "action on cooldown",
			"reason":              "cooldown",
			"retry_after_seconds": 90,
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Action(context.Background(), "tok", "work", ActionRequest{}, "")
	apiErr, ok := Denied(err)
	if !ok {
		t.Fatalf("expected denial, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.Reason != game.ReasonCooldown {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if apiErr.RetryAfter != 90*time.Second {
		t.Fatalf("retry after = %s", apiErr.RetryAfter)
	}
}

func TestPlainErrorIsNotDenial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Leaderboard(context.Background(), 10)
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := Denied(err); ok {
		t.Fatalf("gateway failure reported as denial")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "nested"))

	if _, err := store.Load(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("load before login = %v", err)
	}
	want := Session{AccessToken: "tok", UserID: "alice", BaseURL: "http://localhost:8080"}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("session = %+v want %+v", got, want)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("load after logout = %v", err)
	}
	if err := store.Save(Session{UserID: "alice"}); err == nil {
		t.Fatalf("expected error saving a session without a token")
	}
}

func TestSessionExpiryFromToken(t *testing.T) {
	store := NewSessionStore(t.TempDir())
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return issued }

	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", "hustle", time.Hour)
	tok, err := tokens.Generate("alice", false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := store.Save(Session{AccessToken: tok, UserID: "alice"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	sess, err := store.Load()
	if err != nil {
		t.Fatalf("load fresh token: %v", err)
	}
	if sess.ExpiresAt.IsZero() {
		t.Fatalf("expiry not read from token")
	}

	store.now = func() time.Time { return sess.ExpiresAt.Add(time.Second) }
	if _, err := store.Load(); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("load stale token = %v", err)
	}
}

func TestHomeDirHonorsOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HUSTLECTL_HOME", dir)
	got, err := HomeDir()
	if err != nil || got != dir {
		t.Fatalf("HomeDir = %q, %v", got, err)
	}
}
