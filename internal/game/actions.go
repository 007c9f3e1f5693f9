package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

func (s *Service) Work(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "work", in, func(p *Profile, now time.Time, eff *Effect) error {
		if err := gate(p, ActionWork, now); err != nil {
			return err
		}
		roll := randRange(s.rand, 10, 50) + int64(p.Level)*5
		mult := ComposeMultiplier(*p, ActionWork, now)
		earned := ApplyMultiplier(roll, mult)

		p.Balance += earned
		p.markAction(ActionWork, now)
		eff.Amount = earned
		eff.Multiplier = mult
		progress(p, eff, randRange(s.rand, 5, 15), AchievementFirstPaycheck)
		return nil
	})
}

func (s *Service) Crime(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "crime", in, func(p *Profile, now time.Time, eff *Effect) error {
		if err := gate(p, ActionCrime, now); err != nil {
			return err
		}
		p.markAction(ActionCrime, now)
		res := crimeModel.Resolve(s.rand, RiskInput{Level: p.Level, Balance: p.Balance})
		if !res.Won {
			p.Balance -= res.Amount
			eff.Amount = -res.Amount
			return nil
		}
		mult := itemMultiplier(*p, ActionCrime)
		earned := ApplyMultiplier(res.Amount, mult)
		p.Balance += earned
		eff.Won = true
		eff.Amount = earned
		eff.Multiplier = mult
		progress(p, eff, randRange(s.rand, 10, 25), AchievementFirstCrime)
		return nil
	})
}

func (s *Service) Daily(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "daily", in, func(p *Profile, now time.Time, eff *Effect) error {
		if err := gate(p, ActionDaily, now); err != nil {
			return err
		}
		mult := itemMultiplier(*p, ActionDaily)
		bonus := ApplyMultiplier(100+int64(p.Level)*20, mult)
		p.Balance += bonus
		p.markAction(ActionDaily, now)
		eff.Amount = bonus
		eff.Multiplier = mult
		progress(p, eff, 0)
		return nil
	})
}

func (s *Service) PremiumDaily(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "premium_daily", in, func(p *Profile, now time.Time, eff *Effect) error {
		if active, _ := EvaluatePremium(*p, now); !active {
			return deny(ReasonNotPremium)
		}
		if err := gate(p, ActionPremiumDaily, now); err != nil {
			return err
		}
		bonus := 500 + int64(p.Level)*50
		p.Balance += bonus
		p.markAction(ActionPremiumDaily, now)
		eff.Amount = bonus
		progress(p, eff, 0)
		return nil
	})
}

// Buy purchases a shop item. Ownership is boolean.
func (s *Service) Buy(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "buy", in, func(p *Profile, now time.Time, eff *Effect) error {
		item, ok := itemByID(in.Item)
		if !ok {
			return deny(ReasonUnknownItem)
		}
		if p.HasItem(item.ID) {
			return deny(ReasonAlreadyOwned)
		}
		if p.Balance < item.Price {
			return deny(ReasonInsufficientFunds)
		}
		p.Balance -= item.Price
		p.addItem(item.ID)
		eff.Amount = -item.Price
		eff.Item = item.ID
		return nil
	})
}

// BuyPremium purchases a plan. Timed plans stack onto an active timed grant;
// lifetime replaces it. Nothing can be bought on top of lifetime.
func (s *Service) BuyPremium(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "buy_premium", in, func(p *Profile, now time.Time, eff *Effect) error {
		plan, ok := premiumPlanByID(in.Plan)
		if !ok {
			return deny(ReasonUnknownItem)
		}
		kind := PremiumKindOf(*p, now)
		if kind == PremiumLifetime {
			return deny(ReasonAlreadyPremium)
		}
		if p.Balance < plan.Price {
			return deny(ReasonInsufficientFunds)
		}
		p.Balance -= plan.Price
		p.Premium = true
		if plan.Duration == 0 {
			p.PremiumExpiresAt = nil
		} else {
			start := now
			if kind == PremiumTimed && p.PremiumExpiresAt.After(now) {
				start = *p.PremiumExpiresAt
			}
			expires := start.Add(plan.Duration)
			p.PremiumExpiresAt = &expires
		}
		eff.Amount = -plan.Price
		eff.Item = plan.ID
		eff.Achievements = awardMilestones(p, AchievementPremium)
		return nil
	})
}

func validStake(p *Profile, stake int64) error {
	if stake <= 0 {
		return deny(ReasonInvalidAmount)
	}
	if stake > p.Balance {
		return deny(ReasonInsufficientFunds)
	}
	return nil
}

func (s *Service) Gamble(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "gamble", in, func(p *Profile, now time.Time, eff *Effect) error {
		if err := validStake(p, in.Amount); err != nil {
			return err
		}
		p.markAction(ActionGamble, now)
		res := gambleModel.Resolve(s.rand, RiskInput{Level: p.Level, Balance: p.Balance, Stake: in.Amount})
		if !res.Won {
			p.Balance -= res.Amount
			eff.Amount = -res.Amount
			return nil
		}
		p.Balance += res.Amount
		eff.Won = true
		eff.Amount = res.Amount
		var events []string
		if res.Amount >= 10_000 {
			events = append(events, AchievementHighRoller)
		}
		progress(p, eff, 0, events...)
		return nil
	})
}

func (s *Service) PremiumCasino(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "premium_casino", in, func(p *Profile, now time.Time, eff *Effect) error {
		if active, _ := EvaluatePremium(*p, now); !active {
			return deny(ReasonNotPremium)
		}
		if err := gate(p, ActionPremiumCasino, now); err != nil {
			return err
		}
		if in.Amount < PremiumCasinoMinimum {
			return deny(ReasonInvalidAmount)
		}
		if err := validStake(p, in.Amount); err != nil {
			return err
		}
		p.markAction(ActionPremiumCasino, now)
		res := casinoModel.Resolve(s.rand, RiskInput{Level: p.Level, Balance: p.Balance, Stake: in.Amount})
		if !res.Won {
			p.Balance -= res.Amount
			eff.Amount = -res.Amount
			return nil
		}
		p.Balance += res.Amount
		eff.Won = true
		eff.Amount = res.Amount
		var events []string
		if res.Amount >= 10_000 {
			events = append(events, AchievementHighRoller)
		}
		progress(p, eff, 0, events...)
		return nil
	})
}

// Rob attempts to take part of the target's unvaulted balance. The target's
// minimum is checked before anything is drawn, and only the attacker can lose.
func (s *Service) Rob(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutatePair(ctx, "rob", in, func(attacker, target *Profile, now time.Time, eff *Effect) error {
		if err := gate(attacker, ActionRob, now); err != nil {
			return err
		}
		if target.Balance < RobMinimumTarget {
			return deny(ReasonTargetTooPoor)
		}
		attacker.markAction(ActionRob, now)
		res := robModel.Resolve(s.rand, RiskInput{
			Level:         attacker.Level,
			Balance:       attacker.Balance,
			TargetBalance: target.Balance,
		})
		if !res.Won {
			attacker.Balance -= res.Amount
			eff.Amount = -res.Amount
			return nil
		}
		stolen := min(res.Amount, target.Balance)
		target.Balance -= stolen
		attacker.Balance += stolen
		eff.Won = true
		eff.Amount = stolen
		eff.TargetAmount = -stolen
		progress(attacker, eff, randRange(s.rand, 5, 15), AchievementRobber)
		return nil
	})
}

// quote asks the oracle for a price, mapping unknown symbols to a denial.
func (s *Service) quote(ctx context.Context, symbol string) (string, int64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if s.oracle == nil || ValidateSymbol(symbol) != nil {
		return symbol, 0, deny(ReasonUnknownSymbol)
	}
	price, err := s.oracle.Price(ctx, symbol)
	if errors.Is(err, ErrStockNotFound) {
		return symbol, 0, deny(ReasonUnknownSymbol)
	}
	if err != nil {
		return symbol, 0, fmt.Errorf("price %s: %w", symbol, err)
	}
	return symbol, price, nil
}

// Invest buys shares at the oracle's current price.
func (s *Service) Invest(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "invest", in, func(p *Profile, now time.Time, eff *Effect) error {
		if in.Shares <= 0 {
			return deny(ReasonInvalidAmount)
		}
		symbol, price, err := s.quote(ctx, in.Symbol)
		if err != nil {
			return err
		}
		cost, err := notional(price, in.Shares)
		if err != nil {
			return deny(ReasonInvalidAmount)
		}
		if cost > p.Balance {
			return deny(ReasonInsufficientFunds)
		}
		h := p.Portfolio[symbol]
		basis, err := notional(h.AvgPrice, h.Shares)
		if err != nil {
			return deny(ReasonInvalidAmount)
		}
		h.AvgPrice = (basis + cost) / (h.Shares + in.Shares)
		h.Shares += in.Shares
		if p.Portfolio == nil {
			p.Portfolio = map[string]Holding{}
		}
		p.Portfolio[symbol] = h
		p.Balance -= cost

		eff.Amount = -cost
		eff.Symbol = symbol
		eff.Shares = in.Shares
		eff.Price = price
		eff.Achievements = awardMilestones(p, AchievementInvestor)
		return nil
	})
}

// Sell realises shares at the current price.
func (s *Service) Sell(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "sell", in, func(p *Profile, now time.Time, eff *Effect) error {
		if in.Shares <= 0 {
			return deny(ReasonInvalidAmount)
		}
		symbol, price, err := s.quote(ctx, in.Symbol)
		if err != nil {
			return err
		}
		h, ok := p.Portfolio[symbol]
		if !ok || h.Shares < in.Shares {
			return deny(ReasonInsufficientFunds)
		}
		proceeds, err := notional(price, in.Shares)
		if err != nil {
			return deny(ReasonInvalidAmount)
		}
		h.Shares -= in.Shares
		if h.Shares == 0 {
			delete(p.Portfolio, symbol)
		} else {
			p.Portfolio[symbol] = h
		}
		p.Balance += proceeds

		eff.Amount = proceeds
		eff.Symbol = symbol
		eff.Shares = in.Shares
		eff.Price = price
		progress(p, eff, 0)
		return nil
	})
}

// Profile returns the user's record with lazy corrections applied. A
// correction is written back before returning so it cannot resurface.
func (s *Service) Profile(ctx context.Context, userID string) (out Outcome, err error) {
	ctx, span := s.startSpan(ctx, "profile", ActionInput{UserID: userID})
	defer func() { endSpan(span, out, err) }()
	if userID == "" {
		return Outcome{}, fmt.Errorf("profile: empty user id")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	now := s.now()
	p, existed, err := s.store.load(ctx, userID, now)
	if err != nil {
		return Outcome{}, err
	}
	var eff Effect
	if applyCorrections(&p, now, &eff) || !existed {
		p.UpdatedAt = now
		if err := s.store.save(ctx, p); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Success: true, Profile: p, Effect: eff}, nil
}
