package game

import "time"

// PremiumKind distinguishes timed grants from lifetime ones.
type PremiumKind string

const (
	PremiumNone     PremiumKind = "none"
	PremiumTimed    PremiumKind = "timed"
	PremiumLifetime PremiumKind = "lifetime"
)

// EvaluatePremium reports whether p holds premium at now. A flag with a past
// expiry is logically false: the returned copy has both cleared and callers
// must persist it. Evaluating an already corrected profile is a no-op.
func EvaluatePremium(p Profile, now time.Time) (bool, Profile) {
	if !p.Premium {
		return false, p
	}
	if p.PremiumExpiresAt == nil {
		return true, p
	}
	if now.After(*p.PremiumExpiresAt) {
		corrected := p.Clone()
		corrected.Premium = false
		corrected.PremiumExpiresAt = nil
		return false, corrected
	}
	return true, p
}

// PremiumKindOf classifies p's entitlement at now.
func PremiumKindOf(p Profile, now time.Time) PremiumKind {
	active, _ := EvaluatePremium(p, now)
	switch {
	case !active:
		return PremiumNone
	case p.PremiumExpiresAt == nil:
		return PremiumLifetime
	default:
		return PremiumTimed
	}
}
