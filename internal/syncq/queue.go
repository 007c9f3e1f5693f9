// Package syncq holds hustlectl commands that could not reach the API.
// Each keeps its idempotency key, so replaying an already applied command is
// rejected by the server as a duplicate instead of running twice.
package syncq

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type Command struct {
	Action         string          `json:"action"`
	Admin          bool            `json:"admin,omitempty"`
	Body           json.RawMessage `json:"body,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	QueuedAt       time.Time       `json:"queued_at"`
}

// Result classifies a replay attempt.
type Result int

const (
	// Done means the server answered, applied or denied. Drop it.
	Done Result = iota
	// Retry means the server was unreachable. Stop and keep the rest.
	Retry
)

func queuePath() (string, error) {
	dir := os.Getenv("HUSTLECTL_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".hustlectl")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	commands = append(commands, cmd)
	return Save(commands)
}

// Drain replays queued commands in order until send returns Retry or ctx
// ends. It returns how many were settled and saves the remainder.
func Drain(ctx context.Context, send func(context.Context, Command) Result) (int, error) {
	commands, err := Load()
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, cmd := range commands {
		if ctx.Err() != nil || send(ctx, cmd) == Retry {
			break
		}
		settled++
	}
	if settled == 0 {
		return 0, nil
	}
	return settled, Save(commands[settled:])
}
