package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hustle/internal/kv"
)

// PriceOracle supplies the current price of a listed symbol. Unknown symbols
// must yield an error wrapping ErrStockNotFound.
type PriceOracle interface {
	Price(ctx context.Context, symbol string) (int64, error)
}

type Service struct {
	store  *profileStore
	locks  *lockTable
	log    *slog.Logger
	now    func() time.Time
	rand   Roller
	oracle PriceOracle
	admins map[string]struct{}
	tracer trace.Tracer
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRoller(r Roller) Option {
	return func(s *Service) { s.rand = r }
}

func WithOracle(o PriceOracle) Option {
	return func(s *Service) { s.oracle = o }
}

// WithAdmins sets the identities allowed to run admin overrides.
func WithAdmins(ids ...string) Option {
	return func(s *Service) {
		for _, id := range ids {
			if id != "" {
				s.admins[id] = struct{}{}
			}
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func NewService(store kv.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  &profileStore{kv: store, log: logger},
		locks:  newLockTable(),
		log:    logger,
		now:    time.Now,
		rand:   NewRoller(time.Now().UnixNano()),
		admins: map[string]struct{}{},
		tracer: otel.Tracer("hustle/internal/game"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAdmin reports whether userID may run admin overrides.
func (s *Service) IsAdmin(userID string) bool {
	_, ok := s.admins[userID]
	return ok
}

// step mutates p in place. Returning a *Denial refuses the action; any other
// error aborts it.
type step func(p *Profile, now time.Time, eff *Effect) error

type pairStep func(actor, target *Profile, now time.Time, eff *Effect) error

// groupStep receives the actor first, then the rest of the crew in input order.
type groupStep func(crew []*Profile, now time.Time, eff *Effect) error

func (s *Service) startSpan(ctx context.Context, op string, in ActionInput) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("user.id", in.UserID)}
	if in.TargetID != "" {
		attrs = append(attrs, attribute.String("target.id", in.TargetID))
	}
	return s.tracer.Start(ctx, "game."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, out Outcome, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if !out.Success {
		span.SetAttributes(attribute.String("denied.reason", string(out.Reason)))
	}
	span.End()
}

// applyCorrections runs the lazy fixes every load path owes the record:
// expired premium and matured loans. It reports whether p changed.
func applyCorrections(p *Profile, now time.Time, eff *Effect) bool {
	changed := false
	if _, corrected := EvaluatePremium(*p, now); corrected.Premium != p.Premium {
		*p = corrected
		eff.PremiumExpired = true
		changed = true
	}
	if resolveLoanMaturity(p, now) {
		eff.LoanDefaulted = true
		changed = true
	}
	return changed
}

func denied(p Profile, target *Profile, eff Effect, d *Denial) Outcome {
	return Outcome{Reason: d.Reason, RetryAfter: d.RetryAfter, Profile: p, Target: target, Effect: eff}
}

// mutate is the single-identity read-modify-write cycle. The lock is held
// from load until the write completes.
func (s *Service) mutate(ctx context.Context, op string, in ActionInput, fn step) (out Outcome, err error) {
	ctx, span := s.startSpan(ctx, op, in)
	defer func() { endSpan(span, out, err) }()
	if in.UserID == "" {
		return Outcome{}, fmt.Errorf("%s: empty user id", op)
	}

	unlock := s.locks.lock(in.UserID)
	defer unlock()

	now := s.now()
	p, existed, err := s.store.load(ctx, in.UserID, now)
	if err != nil {
		return Outcome{}, err
	}
	var eff Effect
	dirty := applyCorrections(&p, now, &eff) || !existed
	base := p.Clone()

	var stepErr error
	if p.seenCommand(in.CommandKey) {
		stepErr = deny(ReasonDuplicateCommand)
	} else {
		stepErr = fn(&p, now, &eff)
	}

	var d *Denial
	switch {
	case errors.As(stepErr, &d):
		if dirty {
			base.UpdatedAt = now
			if err := s.store.save(ctx, base); err != nil {
				return Outcome{}, err
			}
		}
		s.log.Debug("action denied", "op", op, "user_id", in.UserID, "reason", d.Reason)
		return denied(base, nil, correctionsOnly(eff), d), nil
	case stepErr != nil:
		return Outcome{}, stepErr
	}

	p.rememberCommand(in.CommandKey)
	p.UpdatedAt = now
	if err := s.store.save(ctx, p); err != nil {
		s.log.Error("persist failed", "op", op, "user_id", in.UserID, "err", err)
		return Outcome{}, err
	}
	return Outcome{Success: true, Profile: p, Effect: eff}, nil
}

// mutatePair runs a two-party cycle. Both identities are locked in canonical
// order and both records commit together or not at all.
func (s *Service) mutatePair(ctx context.Context, op string, in ActionInput, fn pairStep) (out Outcome, err error) {
	ctx, span := s.startSpan(ctx, op, in)
	defer func() { endSpan(span, out, err) }()
	if in.UserID == "" || in.TargetID == "" {
		return Outcome{}, fmt.Errorf("%s: empty user id", op)
	}
	if in.UserID == in.TargetID {
		return s.mutate(ctx, op, in, func(*Profile, time.Time, *Effect) error {
			return deny(ReasonSelfTarget)
		})
	}

	unlock := s.locks.lockPair(in.UserID, in.TargetID)
	defer unlock()

	now := s.now()
	actor, actorExisted, err := s.store.load(ctx, in.UserID, now)
	if err != nil {
		return Outcome{}, err
	}
	target, targetExisted, err := s.store.load(ctx, in.TargetID, now)
	if err != nil {
		return Outcome{}, err
	}
	prevActor := actor.Clone()

	var eff, targetEff Effect
	actorDirty := applyCorrections(&actor, now, &eff) || !actorExisted
	targetDirty := applyCorrections(&target, now, &targetEff) || !targetExisted
	baseActor, baseTarget := actor.Clone(), target.Clone()

	var stepErr error
	if actor.seenCommand(in.CommandKey) {
		stepErr = deny(ReasonDuplicateCommand)
	} else {
		stepErr = fn(&actor, &target, now, &eff)
	}

	var d *Denial
	switch {
	case errors.As(stepErr, &d):
		if err := s.persistCorrections(ctx, now, baseActor, baseTarget, prevActor, actorDirty, targetDirty); err != nil {
			return Outcome{}, err
		}
		s.log.Debug("action denied", "op", op, "user_id", in.UserID, "target_id", in.TargetID, "reason", d.Reason)
		return denied(baseActor, &baseTarget, correctionsOnly(eff), d), nil
	case stepErr != nil:
		return Outcome{}, stepErr
	}

	actor.rememberCommand(in.CommandKey)
	actor.UpdatedAt = now
	target.UpdatedAt = now
	if err := s.store.savePair(ctx, actor, target, prevActor); err != nil {
		s.log.Error("persist failed", "op", op, "user_id", in.UserID, "target_id", in.TargetID, "err", err)
		return Outcome{}, err
	}
	return Outcome{Success: true, Profile: actor, Target: &target, Effect: eff}, nil
}

// mutateGroup runs one cycle over the actor and in.Crew. Every identity is
// locked in canonical order and all records commit together or not at all.
func (s *Service) mutateGroup(ctx context.Context, op string, in ActionInput, fn groupStep) (out Outcome, err error) {
	ctx, span := s.startSpan(ctx, op, in)
	defer func() { endSpan(span, out, err) }()
	if in.UserID == "" {
		return Outcome{}, fmt.Errorf("%s: empty user id", op)
	}
	ids, d := crewIDs(in)
	if d != nil {
		return s.mutate(ctx, op, in, func(*Profile, time.Time, *Effect) error { return d })
	}
	span.SetAttributes(attribute.Int("crew.size", len(ids)))

	unlock := s.locks.lockAll(ids...)
	defer unlock()

	now := s.now()
	var eff Effect
	members := make([]Profile, len(ids))
	prev := make([]Profile, len(ids))
	dirty := make([]bool, len(ids))
	for i, id := range ids {
		p, existed, err := s.store.load(ctx, id, now)
		if err != nil {
			return Outcome{}, err
		}
		prev[i] = p.Clone()
		memberEff := &eff
		if i > 0 {
			memberEff = &Effect{}
		}
		dirty[i] = applyCorrections(&p, now, memberEff) || !existed
		members[i] = p
	}
	base := make([]Profile, len(members))
	ptrs := make([]*Profile, len(members))
	for i := range members {
		base[i] = members[i].Clone()
		ptrs[i] = &members[i]
	}

	var stepErr error
	if members[0].seenCommand(in.CommandKey) {
		stepErr = deny(ReasonDuplicateCommand)
	} else {
		stepErr = fn(ptrs, now, &eff)
	}

	switch {
	case errors.As(stepErr, &d):
		var fixed, fixedPrev []Profile
		for i := range base {
			if dirty[i] {
				base[i].UpdatedAt = now
				fixed = append(fixed, base[i])
				fixedPrev = append(fixedPrev, prev[i])
			}
		}
		if len(fixed) > 0 {
			if err := s.store.saveAll(ctx, fixed, fixedPrev); err != nil {
				return Outcome{}, err
			}
		}
		s.log.Debug("action denied", "op", op, "user_id", in.UserID, "crew", len(ids)-1, "reason", d.Reason)
		res := denied(base[0], nil, correctionsOnly(eff), d)
		res.Crew = base[1:]
		return res, nil
	case stepErr != nil:
		return Outcome{}, stepErr
	}

	members[0].rememberCommand(in.CommandKey)
	for i := range members {
		members[i].UpdatedAt = now
	}
	if err := s.store.saveAll(ctx, members, prev); err != nil {
		s.log.Error("persist failed", "op", op, "user_id", in.UserID, "crew", len(ids)-1, "err", err)
		return Outcome{}, err
	}
	return Outcome{Success: true, Profile: members[0], Crew: members[1:], Effect: eff}, nil
}

// crewIDs returns the actor followed by the distinct crew ids, or a denial
// when the crew is empty, too large or includes the actor.
func crewIDs(in ActionInput) ([]string, *Denial) {
	ids := []string{in.UserID}
	seen := map[string]bool{in.UserID: true}
	for _, id := range in.Crew {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if id == in.UserID {
			return nil, &Denial{Reason: ReasonSelfTarget}
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if n := len(ids) - 1; n < 1 || n > MaxHeistCrew {
		return nil, &Denial{Reason: ReasonCrewSize}
	}
	return ids, nil
}

func (s *Service) persistCorrections(ctx context.Context, now time.Time, actor, target, prevActor Profile, actorDirty, targetDirty bool) error {
	actor.UpdatedAt, target.UpdatedAt = now, now
	switch {
	case actorDirty && targetDirty:
		return s.store.savePair(ctx, actor, target, prevActor)
	case actorDirty:
		return s.store.save(ctx, actor)
	case targetDirty:
		return s.store.save(ctx, target)
	}
	return nil
}

// correctionsOnly strips everything but the lazy-correction flags from a
// denied action's effect.
func correctionsOnly(eff Effect) Effect {
	return Effect{LoanDefaulted: eff.LoanDefaulted, PremiumExpired: eff.PremiumExpired}
}

// gate denies with the exact remaining wait when action is cooling down.
func gate(p *Profile, action Action, now time.Time) error {
	if ok, remaining := CheckCooldown(*p, action, now); !ok {
		return &Denial{Reason: ReasonCooldown, RetryAfter: remaining}
	}
	return nil
}

// progress applies XP, level, promotion and achievements after an earning
// action, recording each in eff.
func progress(p *Profile, eff *Effect, xp int64, events ...string) {
	if xp > 0 {
		eff.XP += xp
	}
	if ApplyExperience(p, xp) {
		eff.LeveledUp = true
		eff.NewLevel = p.Level
	}
	if ApplyPromotion(p) {
		eff.Promoted = true
		eff.NewJob = p.Job
	}
	eff.Achievements = append(eff.Achievements, awardMilestones(p, events...)...)
}
