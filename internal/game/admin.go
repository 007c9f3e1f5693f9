package game

import (
	"context"
	"math"
	"time"
)

// admin runs fn against TargetID, or the admin's own record when empty.
// Overrides never auto-promote, and SetJob is the only path that can lower a
// job.
func (s *Service) admin(ctx context.Context, op string, in ActionInput, fn step) (Outcome, error) {
	if !s.IsAdmin(in.UserID) {
		s.log.Warn("admin action refused", "op", op, "user_id", in.UserID)
		return Outcome{Reason: ReasonForbidden}, nil
	}
	target := in.TargetID
	if target == "" {
		target = in.UserID
	}
	out, err := s.mutate(ctx, op, ActionInput{UserID: target, CommandKey: in.CommandKey}, fn)
	if err == nil && out.Success {
		s.log.Info("admin override", "op", op, "admin_id", in.UserID, "target_id", target)
	}
	return out, err
}

func (s *Service) AddMoney(ctx context.Context, in ActionInput) (Outcome, error) {
	amount := in.Amount
	if amount == 0 {
		amount = DefaultAdminGrant
	}
	return s.admin(ctx, "admin.addmoney", in, func(p *Profile, _ time.Time, eff *Effect) error {
		if amount < 0 {
			return deny(ReasonInvalidAmount)
		}
		if p.Balance > math.MaxInt64-amount {
			return deny(ReasonCapExceeded)
		}
		p.Balance += amount
		eff.Amount = amount
		return nil
	})
}

func (s *Service) SetMoney(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.admin(ctx, "admin.setmoney", in, func(p *Profile, _ time.Time, eff *Effect) error {
		if in.Amount < 0 {
			return deny(ReasonInvalidAmount)
		}
		eff.Amount = in.Amount - p.Balance
		p.Balance = in.Amount
		return nil
	})
}

func (s *Service) SetJob(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.admin(ctx, "admin.setjob", in, func(p *Profile, _ time.Time, eff *Effect) error {
		job, err := ParseJob(in.Job)
		if err != nil {
			return deny(ReasonUnknownJob)
		}
		p.Job = job
		eff.NewJob = job
		return nil
	})
}
