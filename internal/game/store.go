package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hustle/internal/kv"
)

// profileStore owns serialisation of one record per identity.
type profileStore struct {
	kv  kv.Store
	log *slog.Logger
}

// load returns the persisted profile, or a fresh default when none exists.
// existed reports which.
func (s *profileStore) load(ctx context.Context, userID string, now time.Time) (p Profile, existed bool, err error) {
	raw, err := s.kv.Get(ctx, profileKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return newProfile(userID, now), false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("load profile: %w", err)
	}
	p, err = decodeProfile(userID, raw)
	if err != nil {
		return Profile{}, false, err
	}
	return p, true, nil
}

func (s *profileStore) save(ctx context.Context, p Profile) error {
	raw, err := s.encode(p)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, profileKey(p.UserID), raw); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *profileStore) encode(p Profile) ([]byte, error) {
	if err := p.validate(); err != nil {
		s.log.Error("refusing to persist profile", "user_id", p.UserID, "err", err)
		return nil, err
	}
	raw, err := encodeProfile(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return raw, nil
}

// savePair persists two profiles as one unit; see saveAll.
func (s *profileStore) savePair(ctx context.Context, first, second, prevFirst Profile) error {
	return s.saveAll(ctx, []Profile{first, second}, []Profile{prevFirst, second})
}

// saveAll persists profiles as one unit. Backends implementing kv.Batcher
// commit them in a single transaction; otherwise each record already written
// is restored to prev[i] when a later write fails.
func (s *profileStore) saveAll(ctx context.Context, profiles, prev []Profile) error {
	entries := make([]kv.Entry, len(profiles))
	for i, p := range profiles {
		raw, err := s.encode(p)
		if err != nil {
			return err
		}
		entries[i] = kv.Entry{Key: profileKey(p.UserID), Value: raw}
	}
	if batcher, ok := s.kv.(kv.Batcher); ok {
		if err := batcher.SetMany(ctx, entries); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		return nil
	}

	for i, e := range entries {
		err := s.kv.Set(ctx, e.Key, e.Value)
		if err == nil {
			continue
		}
		var rerrs []error
		for j := i - 1; j >= 0; j-- {
			if rerr := s.restore(ctx, prev[j]); rerr != nil {
				s.log.Error("compensating write failed", "user_id", prev[j].UserID, "err", rerr)
				rerrs = append(rerrs, rerr)
			}
		}
		return errors.Join(append([]error{fmt.Errorf("save profile: %w", err)}, rerrs...)...)
	}
	return nil
}

func (s *profileStore) restore(ctx context.Context, prev Profile) error {
	raw, err := encodeProfile(prev)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.kv.Set(ctx, profileKey(prev.UserID), raw); err != nil {
		return fmt.Errorf("restore profile: %w", err)
	}
	return nil
}

// snapshot decodes every stored profile. Records that fail to decode are
// skipped so one bad row cannot hide the leaderboard.
func (s *profileStore) snapshot(ctx context.Context) (map[string]Profile, error) {
	entries, err := s.kv.ScanPrefix(ctx, profileKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan profiles: %w", err)
	}
	out := make(map[string]Profile, len(entries))
	for _, e := range entries {
		id := strings.TrimPrefix(e.Key, profileKeyPrefix)
		p, err := decodeProfile(id, e.Value)
		if err != nil {
			s.log.Warn("skipping undecodable profile", "key", e.Key, "err", err)
			continue
		}
		out[id] = p
	}
	return out, nil
}
