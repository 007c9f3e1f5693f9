package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotLoggedIn    = errors.New("not logged in: run `hustlectl login <user-id>`")
	ErrSessionExpired = errors.New("session token expired: run `hustlectl login` again")
)

// Session is the identity hustlectl acts as between invocations.
type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	Admin       bool      `json:"admin,omitempty"`
	BaseURL     string    `json:"base_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

// Expired reports whether the token's exp claim has passed. Sessions without a
// known expiry never expire locally; the API still rejects stale tokens.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// tokenExpiry reads exp without verifying the signature. The CLI never holds
// the key needed to verify, it only wants to fail fast on a stale login.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// SessionStore keeps one session file under the hustlectl home directory.
type SessionStore struct {
	path string
	now  func() time.Time
}

// HomeDir is $HUSTLECTL_HOME, or ~/.hustlectl when unset.
func HomeDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("HUSTLECTL_HOME")); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".hustlectl"), nil
}

func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{path: filepath.Join(dir, "session.json"), now: time.Now}
}

// DefaultSessionStore opens the store under HomeDir.
func DefaultSessionStore() (*SessionStore, error) {
	dir, err := HomeDir()
	if err != nil {
		return nil, err
	}
	return NewSessionStore(dir), nil
}

// Save writes the session through a temp file so a crash never leaves a
// half-written token behind.
func (st *SessionStore) Save(s Session) error {
	if strings.TrimSpace(s.AccessToken) == "" {
		return errors.New("refusing to save a session without a token")
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = tokenExpiry(s.AccessToken)
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(st.path), "session-*.json")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp.Name(), st.path)
}

// Load returns ErrNotLoggedIn when there is no session and ErrSessionExpired
// when the saved token is past its exp claim.
func (st *SessionStore) Load() (Session, error) {
	body, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNotLoggedIn
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", st.path, err)
	}
	if strings.TrimSpace(s.AccessToken) == "" {
		return Session{}, ErrNotLoggedIn
	}
	if s.Expired(st.now()) {
		return s, ErrSessionExpired
	}
	return s, nil
}

// Clear removes the session. Clearing twice is not an error.
func (st *SessionStore) Clear() error {
	if err := os.Remove(st.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
