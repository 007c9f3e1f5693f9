package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hustle/internal/auth"
	"hustle/internal/config"
	"hustle/internal/game"
	"hustle/internal/kv/memkv"
	"hustle/internal/market"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	srv    *httptest.Server
	tokens *auth.TokenManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memkv.New()
	oracle := market.New(store, logger, "mor", market.WithSeed(7))
	if err := oracle.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := game.NewService(store, logger,
		game.WithOracle(oracle),
		game.WithRoller(game.NewRoller(42)),
		game.WithAdmins("owner"),
	)
	tokens := auth.NewTokenManager(testSecret, "hustle", time.Hour)
	s := New(config.HTTPConfig{}, logger, tokens, svc, oracle)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, tokens: tokens}
}

func (f *fixture) token(t *testing.T, userID string, admin bool) string {
	t.Helper()
	tok, err := f.tokens.Generate(userID, admin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp, out
}

func TestHealthAndAuth(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/healthz", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodGet, "/v1/profile", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", resp.StatusCode)
	}
	if body["error"] == "" {
		t.Fatalf("expected error message")
	}

	resp, _ = f.do(t, http.MethodGet, "/v1/profile", "not-a-jwt", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", resp.StatusCode)
	}

	resp, body = f.do(t, http.MethodGet, "/v1/profile", f.token(t, "alice", false), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d body=%v", resp.StatusCode, body)
	}
	profile := body["profile"].(map[string]any)
	if profile["user_id"] != "alice" || profile["job"] != string(game.JobHomeless) {
		t.Fatalf("unexpected profile %v", profile)
	}
}

func TestWorkThenCooldown(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "alice", false)

	resp, body := f.do(t, http.MethodPost, "/v1/actions/work", tok, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("work status = %d body=%v", resp.StatusCode, body)
	}
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}

	resp, body = f.do(t, http.MethodPost, "/v1/actions/work", tok, nil, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second work status = %d", resp.StatusCode)
	}
	if body["reason"] != string(game.ReasonCooldown) {
		t.Fatalf("reason = %v", body["reason"])
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestDeniedActionsMapToStatus(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "alice", false)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		reason game.Reason
	}{
		{"gift too much", "/v1/actions/gift", map[string]any{"target_id": "bob", "amount": 1_000_000}, http.StatusBadRequest, game.ReasonInsufficientFunds},
		{"gift self", "/v1/actions/gift", map[string]any{"target_id": "alice", "amount": 1}, http.StatusBadRequest, game.ReasonSelfTarget},
		{"unknown item", "/v1/actions/buy", map[string]any{"item": "yacht"}, http.StatusNotFound, game.ReasonUnknownItem},
		{"premium daily", "/v1/actions/premium-daily", nil, http.StatusPaymentRequired, game.ReasonNotPremium},
		{"repay nothing", "/v1/actions/repay", nil, http.StatusNotFound, game.ReasonNoLoan},
		{"heist alone", "/v1/actions/heist", map[string]any{"crew": []string{}}, http.StatusBadRequest, game.ReasonCrewSize},
		{"heist crew too big", "/v1/actions/heist", map[string]any{"crew": []string{"b", "c", "d", "e", "f"}}, http.StatusBadRequest, game.ReasonCrewSize},
		{"heist self", "/v1/actions/heist", map[string]any{"crew": []string{"alice"}}, http.StatusBadRequest, game.ReasonSelfTarget},
		{"premium heist", "/v1/actions/premium-heist", map[string]any{"crew": []string{"bob"}}, http.StatusPaymentRequired, game.ReasonNotPremium},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, tc.path, tok, tc.body, nil)
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d want %d body=%v", resp.StatusCode, tc.status, body)
			}
			if body["reason"] != string(tc.reason) {
				t.Fatalf("reason = %v want %s", body["reason"], tc.reason)
			}
		})
	}
}

func TestHeistReturnsCrew(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "alice", false)

	resp, body := f.do(t, http.MethodPost, "/v1/actions/heist", tok, map[string]any{"crew": []string{"bob", "carol"}}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("heist status = %d body=%v", resp.StatusCode, body)
	}
	crew, ok := body["crew"].([]any)
	if !ok || len(crew) != 2 {
		t.Fatalf("crew = %v", body["crew"])
	}
	first := crew[0].(map[string]any)
	if first["user_id"] != "bob" {
		t.Fatalf("crew[0] = %v", first["user_id"])
	}

	resp, body = f.do(t, http.MethodPost, "/v1/actions/heist", f.token(t, "bob", false), map[string]any{"crew": []string{"alice"}}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second heist status = %d body=%v", resp.StatusCode, body)
	}
}

func TestAchievementCatalog(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/v1/achievements", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	list, ok := body["achievements"].([]any)
	if !ok || len(list) != len(game.Achievements()) {
		t.Fatalf("achievements = %v", body["achievements"])
	}
}

func TestIdempotencyKeyRejectsReplay(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "alice", false)
	headers := map[string]string{"Idempotency-Key": "daily-1"}

	resp, _ := f.do(t, http.MethodPost, "/v1/actions/daily", tok, nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("daily status = %d", resp.StatusCode)
	}
	resp, body := f.do(t, http.MethodPost, "/v1/actions/daily", tok, nil, headers)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("replay status = %d", resp.StatusCode)
	}
	if body["reason"] != string(game.ReasonDuplicateCommand) {
		t.Fatalf("reason = %v", body["reason"])
	}
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "alice", false)

	resp, _ := f.do(t, http.MethodPost, "/v1/actions/teleport", tok, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown action status = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodPost, "/v1/actions/gift", tok, map[string]any{"target": "bob"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/v1/leaderboard?limit=abc", "", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", resp.StatusCode)
	}
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/v1/admin/addmoney", f.token(t, "owner", false), map[string]any{"target_id": "bob", "amount": 500}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin token status = %d", resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodPost, "/v1/admin/addmoney", f.token(t, "mallory", true), map[string]any{"target_id": "bob", "amount": 500}, nil)
	if resp.StatusCode != http.StatusForbidden || body["reason"] != string(game.ReasonForbidden) {
		t.Fatalf("unlisted admin status = %d reason=%v", resp.StatusCode, body["reason"])
	}

	admin := f.token(t, "owner", true)
	resp, body = f.do(t, http.MethodPost, "/v1/admin/addmoney", admin, map[string]any{"target_id": "bob", "amount": 500}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("addmoney status = %d body=%v", resp.StatusCode, body)
	}
	resp, body = f.do(t, http.MethodPost, "/v1/admin/setjob", admin, map[string]any{"target_id": "bob", "job": "astronaut"}, nil)
	if resp.StatusCode != http.StatusNotFound || body["reason"] != string(game.ReasonUnknownJob) {
		t.Fatalf("setjob status = %d reason=%v", resp.StatusCode, body["reason"])
	}

	resp, body = f.do(t, http.MethodGet, "/v1/leaderboard?limit=5", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard status = %d", resp.StatusCode)
	}
	rows := body["rows"].([]any)
	if len(rows) == 0 {
		t.Fatalf("expected leaderboard rows")
	}
	top := rows[0].(map[string]any)
	if top["user_id"] != "bob" || top["balance"].(float64) != 500 {
		t.Fatalf("unexpected top row %v", top)
	}
}

func TestStocks(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/v1/stocks", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stocks status = %d", resp.StatusCode)
	}
	if got := len(body["stocks"].([]any)); got != 5 {
		t.Fatalf("stocks = %d want 5", got)
	}

	resp, body = f.do(t, http.MethodGet, "/v1/stocks/tech", "", nil, nil)
	if resp.StatusCode != http.StatusOK || body["symbol"] != "TECH" {
		t.Fatalf("stock detail status = %d body=%v", resp.StatusCode, body)
	}

	resp, _ = f.do(t, http.MethodGet, "/v1/stocks/NOPE", "", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown stock status = %d", resp.StatusCode)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearerabc":    "",
	}
	for in, want := range tests {
		if got := bearerToken(in); got != want {
			t.Fatalf("bearerToken(%q) = %q want %q", in, got, want)
		}
	}
}

func TestRunStopsWithContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memkv.New()
	oracle := market.New(store, logger, "mor", market.WithSeed(7))
	svc := game.NewService(store, logger, game.WithOracle(oracle))
	s := New(config.HTTPConfig{Addr: "127.0.0.1:0"}, logger, auth.NewTokenManager(testSecret, "hustle", time.Hour), svc, oracle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
