package game

import (
	mathrand "math/rand"
	"sync"
)

// Roller is the random source behind every risk action. Tests inject a
// scripted roller; production uses a mutex-guarded math/rand source.
type Roller interface {
	Float64() float64
	Intn(n int) int
}

type lockedRand struct {
	mu   sync.Mutex
	rand *mathrand.Rand
}

// NewRoller returns a goroutine-safe Roller seeded with seed.
func NewRoller(seed int64) Roller {
	return &lockedRand{rand: mathrand.New(mathrand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// randRange draws uniformly from [lo, hi].
func randRange(r Roller, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + int64(r.Intn(int(hi-lo+1)))
}

// RiskInput is the state a risk model reads.
type RiskInput struct {
	Level         int
	Balance       int64
	Stake         int64
	TargetBalance int64
}

// RiskModel is one parameterisation of the shared resolver: a success rate,
// a reward curve drawn on success, and a penalty computed on failure.
type RiskModel struct {
	Name        string
	SuccessRate float64
	Reward      func(r Roller, in RiskInput) int64
	Penalty     func(in RiskInput) int64
}

// Resolution is the raw result before multipliers and progression.
type Resolution struct {
	Won    bool
	Amount int64
}

// Resolve draws once against SuccessRate, then evaluates the matching curve.
func (m RiskModel) Resolve(r Roller, in RiskInput) Resolution {
	if r.Float64() < m.SuccessRate {
		return Resolution{Won: true, Amount: m.Reward(r, in)}
	}
	return Resolution{Amount: m.penalty(in)}
}

// maxGroupRate caps a crew's odds however large the bonus.
const maxGroupRate = 0.85

// ResolveGroup draws once for the whole crew against SuccessRate+bonus, then
// evaluates the matching curve for each member in order.
func (m RiskModel) ResolveGroup(r Roller, bonus float64, crew []RiskInput) []Resolution {
	won := r.Float64() < min(m.SuccessRate+bonus, maxGroupRate)
	out := make([]Resolution, len(crew))
	for i, in := range crew {
		if won {
			out[i] = Resolution{Won: true, Amount: m.Reward(r, in)}
			continue
		}
		out[i] = Resolution{Amount: m.penalty(in)}
	}
	return out
}

// penalty clamps the model's penalty to [0, balance].
func (m RiskModel) penalty(in RiskInput) int64 {
	p := int64(0)
	if m.Penalty != nil {
		p = m.Penalty(in)
	}
	return max(0, min(p, in.Balance))
}

// capped returns min(balance/4, limit).
func capped(limit int64) func(RiskInput) int64 {
	return func(in RiskInput) int64 {
		return min(in.Balance/4, limit)
	}
}

func loseStake(in RiskInput) int64 { return in.Stake }

var (
	crimeModel = RiskModel{
		Name:        "crime",
		SuccessRate: 0.60,
		Reward: func(r Roller, in RiskInput) int64 {
			return randRange(r, 50, 200) + int64(in.Level)*10
		},
		Penalty: capped(100),
	}
	robModel = RiskModel{
		Name:        "rob",
		SuccessRate: 0.45,
		Reward: func(r Roller, in RiskInput) int64 {
			return in.TargetBalance * randRange(r, 10, 30) / 100
		},
		Penalty: capped(200),
	}
	gambleModel = RiskModel{
		Name:        "gamble",
		SuccessRate: 0.45,
		Reward:      func(_ Roller, in RiskInput) int64 { return in.Stake },
		Penalty:     loseStake,
	}
	heistModel = RiskModel{
		Name:        "heist",
		SuccessRate: 0.35,
		Reward: func(r Roller, in RiskInput) int64 {
			return randRange(r, 200, 600) + int64(in.Level)*20
		},
		Penalty: capped(150),
	}
	premiumHeistModel = RiskModel{
		Name:        "premium_heist",
		SuccessRate: 0.50,
		Reward: func(r Roller, in RiskInput) int64 {
			return randRange(r, 500, 1_500) + int64(in.Level)*50
		},
		Penalty: capped(100),
	}
	casinoModel = RiskModel{
		Name:        "premium_casino",
		SuccessRate: 0.55,
		Reward:      func(_ Roller, in RiskInput) int64 { return in.Stake * 3 / 2 },
		Penalty:     loseStake,
	}
)

// heistCrewBonus is added to a heist's odds for each member beyond the leader.
const heistCrewBonus = 0.08
