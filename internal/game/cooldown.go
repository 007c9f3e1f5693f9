package game

import "time"

// EffectiveCooldown applies the item override first, then premium halving.
func EffectiveCooldown(p Profile, action Action, now time.Time) time.Duration {
	rule, ok := cooldownRules[action]
	if !ok {
		return 0
	}
	d := rule.Base
	for _, id := range p.Inventory {
		if it, ok := itemByID(id); ok {
			if override, ok := it.Cooldown[action]; ok && override < d {
				d = override
			}
		}
	}
	if rule.PremiumHalves && PremiumKindOf(p, now) != PremiumNone {
		d /= 2
	}
	return d
}

// CheckCooldown returns ok when the action may run now; otherwise the exact
// remaining wait. It never blocks.
func CheckCooldown(p Profile, action Action, now time.Time) (ok bool, remaining time.Duration) {
	last, seen := p.lastAction(action)
	if !seen {
		return true, 0
	}
	effective := EffectiveCooldown(p, action, now)
	elapsed := now.Sub(last)
	if elapsed < effective {
		return false, effective - elapsed
	}
	return true, 0
}
