package game

import (
	"context"
	"sort"
)

// SnapshotAllProfiles returns a copy of every stored profile for read-only
// display. Mutating the result has no effect on stored state.
func (s *Service) SnapshotAllProfiles(ctx context.Context) (map[string]Profile, error) {
	return s.store.snapshot(ctx)
}

// Leaderboard ranks by balance descending, ties broken by id.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	all, err := s.SnapshotAllProfiles(ctx)
	if err != nil {
		return nil, err
	}
	profiles := make([]Profile, 0, len(all))
	for _, p := range all {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Balance != profiles[j].Balance {
			return profiles[i].Balance > profiles[j].Balance
		}
		return profiles[i].UserID < profiles[j].UserID
	})
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if len(profiles) > limit {
		profiles = profiles[:limit]
	}
	rows := make([]LeaderboardRow, 0, len(profiles))
	for i, p := range profiles {
		rows = append(rows, LeaderboardRow{
			Rank:    i + 1,
			UserID:  p.UserID,
			Balance: p.Balance,
			Job:     p.Job,
			Level:   p.Level,
			Status:  p.Status(),
		})
	}
	return rows, nil
}
