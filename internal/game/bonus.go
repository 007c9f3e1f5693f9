package game

import (
	"math"
	"time"
)

// JobMultiplier is the tier base factor. Unknown jobs earn at 1.0.
func JobMultiplier(j Job) float64 {
	if r := j.Rank(); r >= 0 {
		return jobLadder[r].Multiplier
	}
	return 1.0
}

func itemMultiplier(p Profile, action Action) float64 {
	m := 1.0
	for _, id := range p.Inventory {
		if it, ok := itemByID(id); ok {
			if f, ok := it.Bonus[action]; ok {
				m *= f
			}
		}
	}
	return m
}

func premiumMultiplier(kind PremiumKind) float64 {
	switch kind {
	case PremiumLifetime:
		return LifetimePremiumMultiplier
	case PremiumTimed:
		return TimedPremiumMultiplier
	default:
		return 1.0
	}
}

// ComposeMultiplier is job tier × each relevant item × premium, all multiplied.
func ComposeMultiplier(p Profile, action Action, now time.Time) float64 {
	return JobMultiplier(p.Job) * itemMultiplier(p, action) * premiumMultiplier(PremiumKindOf(p, now))
}

// ApplyMultiplier floors roll × multiplier.
func ApplyMultiplier(roll int64, multiplier float64) int64 {
	// Products like 40 × 34.375 are exact in binary but chained float factors
	// can land a hair under an integer; nudge before flooring.
	v := float64(roll) * multiplier
	return int64(math.Floor(v + 1e-9))
}
