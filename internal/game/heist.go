package game

import (
	"context"
	"time"
)

// Heist runs a group job led by the actor with the members named in in.Crew.
// Every member must be off the heist cooldown. One draw decides the job for
// the whole crew; rewards and penalties are then computed per member.
func (s *Service) Heist(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.heist(ctx, "heist", in, heistModel, ActionHeist, false)
}

// PremiumHeist is a heist with better odds and payouts. Only the leader needs
// active premium.
func (s *Service) PremiumHeist(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.heist(ctx, "premium_heist", in, premiumHeistModel, ActionPremiumHeist, true)
}

func (s *Service) heist(ctx context.Context, op string, in ActionInput, model RiskModel, action Action, needsPremium bool) (Outcome, error) {
	return s.mutateGroup(ctx, op, in, func(crew []*Profile, now time.Time, eff *Effect) error {
		leader := crew[0]
		if needsPremium {
			if active, _ := EvaluatePremium(*leader, now); !active {
				return deny(ReasonNotPremium)
			}
		}
		for _, m := range crew {
			if err := gate(m, action, now); err != nil {
				return err
			}
		}

		inputs := make([]RiskInput, len(crew))
		for i, m := range crew {
			m.markAction(action, now)
			inputs[i] = RiskInput{Level: m.Level, Balance: m.Balance}
		}
		bonus := heistCrewBonus * float64(len(crew)-1)
		results := model.ResolveGroup(s.rand, bonus, inputs)

		eff.Won = results[0].Won
		eff.CrewAmounts = make(map[string]int64, len(crew)-1)
		for i, m := range crew {
			res := results[i]
			delta := res.Amount
			if !res.Won {
				delta = -res.Amount
			}
			m.Balance += delta

			memberEff := eff
			if i > 0 {
				eff.CrewAmounts[m.UserID] = delta
				memberEff = &Effect{}
			} else {
				eff.Amount = delta
			}
			if !res.Won {
				continue
			}
			events := []string{AchievementHeist}
			if i == 0 {
				events = append(events, AchievementMastermind)
			}
			progress(m, memberEff, randRange(s.rand, 15, 30), events...)
		}
		return nil
	})
}
