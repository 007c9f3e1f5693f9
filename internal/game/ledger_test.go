package game

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGiftMovesFunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "alice", Balance: 1_000})
	h.seed(t, Profile{UserID: "bob", Balance: 50})

	out, err := h.svc.Gift(ctx, ActionInput{UserID: "alice", TargetID: "bob", Amount: 1_500})
	expectDenied(t, out, err, ReasonInsufficientFunds)
	if a, b := h.stored(t, "alice").Balance, h.stored(t, "bob").Balance; a != 1_000 || b != 50 {
		t.Fatalf("denied gift changed balances: %d/%d", a, b)
	}

	out, err = h.svc.Gift(ctx, ActionInput{UserID: "alice", TargetID: "bob", Amount: 400})
	expectApplied(t, out, err)
	if out.Profile.Balance != 600 || out.Target.Balance != 450 {
		t.Fatalf("outcome balances %d/%d, want 600/450", out.Profile.Balance, out.Target.Balance)
	}
	if a, b := h.stored(t, "alice").Balance, h.stored(t, "bob").Balance; a != 600 || b != 450 {
		t.Fatalf("stored balances %d/%d, want 600/450", a, b)
	}
}

func TestGiftValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "alice", Balance: 1_000})

	tests := []struct {
		name string
		in   ActionInput
		want Reason
	}{
		{name: "self", in: ActionInput{UserID: "alice", TargetID: "alice", Amount: 10}, want: ReasonSelfTarget},
		{name: "zero", in: ActionInput{UserID: "alice", TargetID: "bob", Amount: 0}, want: ReasonInvalidAmount},
		{name: "negative", in: ActionInput{UserID: "alice", TargetID: "bob", Amount: -5}, want: ReasonInvalidAmount},
	}
	for _, tc := range tests {
		out, err := h.svc.Gift(ctx, tc.in)
		if err != nil || out.Success || out.Reason != tc.want {
			t.Fatalf("%s: got success=%v reason=%q err=%v", tc.name, out.Success, out.Reason, err)
		}
	}
	if got := h.stored(t, "alice").Balance; got != 1_000 {
		t.Fatalf("balance changed to %d", got)
	}
}

func TestPremiumGiftCarriesMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "alice", Balance: 1_000})
	h.seed(t, Profile{UserID: "vip", Balance: 1_000, Premium: true})

	out, err := h.svc.PremiumGift(ctx, ActionInput{UserID: "alice", TargetID: "bob", Amount: 10, Message: "hi"})
	expectDenied(t, out, err, ReasonNotPremium)

	out, err = h.svc.PremiumGift(ctx, ActionInput{UserID: "vip", TargetID: "bob", Amount: 10, Message: "  enjoy  "})
	expectApplied(t, out, err)
	if out.Effect.Message != "enjoy" || out.Target.Balance != 10 {
		t.Fatalf("premium gift effect %+v target %d", out.Effect, out.Target.Balance)
	}
}

func TestGiftStorageFailureLeavesBothUnchanged(t *testing.T) {
	injected := errors.New("disk full")
	for _, failing := range []string{"alice", "bob"} {
		h := newHarness(t)
		ctx := context.Background()
		h.seed(t, Profile{UserID: "alice", Balance: 1_000})
		h.seed(t, Profile{UserID: "bob", Balance: 50})
		h.store.FailSet(profileKey(failing), injected)

		_, err := h.svc.Gift(ctx, ActionInput{UserID: "alice", TargetID: "bob", Amount: 400})
		if !errors.Is(err, injected) {
			t.Fatalf("failing %s: expected storage error, got %v", failing, err)
		}
		h.store.FailSet(profileKey(failing), nil)
		if a, b := h.stored(t, "alice").Balance, h.stored(t, "bob").Balance; a != 1_000 || b != 50 {
			t.Fatalf("failing %s: partial transfer persisted %d/%d", failing, a, b)
		}
	}
}

func TestWorkStorageFailureIsNotApplied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "u1", Balance: 10})
	h.store.FailSet(profileKey("u1"), errors.New("timeout"))

	if _, err := h.svc.Work(ctx, ActionInput{UserID: "u1"}); err == nil {
		t.Fatalf("expected storage failure")
	}
	h.store.FailSet(profileKey("u1"), nil)
	p := h.stored(t, "u1")
	if p.Balance != 10 {
		t.Fatalf("balance %d after failed save", p.Balance)
	}
	if _, ok := p.lastAction(ActionWork); ok {
		t.Fatalf("cooldown recorded for a failed save")
	}
}

func TestLoanDefaultWipesBorrower(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "lender", Balance: 10_000})
	h.seed(t, Profile{UserID: "borrower", Balance: 200, VaultBalance: 300})

	out, err := h.svc.Loan(ctx, ActionInput{UserID: "lender", TargetID: "borrower", Amount: 5_000, Days: 7})
	expectApplied(t, out, err)
	if out.Profile.Balance != 5_000 || out.Target.Balance != 5_200 {
		t.Fatalf("loan balances %d/%d", out.Profile.Balance, out.Target.Balance)
	}
	if out.Effect.Loan == nil || !out.Effect.Loan.MaturesAt.Equal(epoch.Add(7*24*time.Hour)) {
		t.Fatalf("unexpected loan record %+v", out.Effect.Loan)
	}

	h.clock.Advance(7*24*time.Hour + time.Second)
	// The borrower's next command is denied, but the default still lands.
	out, err = h.svc.Gift(ctx, ActionInput{UserID: "borrower", TargetID: "lender", Amount: 0})
	expectDenied(t, out, err, ReasonInvalidAmount)
	if !out.Effect.LoanDefaulted {
		t.Fatalf("expected default to be reported")
	}

	b := h.stored(t, "borrower")
	if b.Balance != 0 || b.VaultBalance != 300 {
		t.Fatalf("borrower balance=%d vault=%d, want 0/300", b.Balance, b.VaultBalance)
	}
	if _, _, open := b.OpenLoan(); open || b.Loans[0].Status != LoanDefaulted {
		t.Fatalf("loan not defaulted: %+v", b.Loans)
	}
	if l := h.stored(t, "lender"); l.Balance != 5_000 {
		t.Fatalf("lender must receive nothing on default, balance %d", l.Balance)
	}
}

func TestLoanLimits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "lender", Balance: 100_000})

	tests := []struct {
		name   string
		amount int64
		days   int
		want   Reason
	}{
		{name: "amount cap", amount: MaxLoanAmount + 1, days: 7, want: ReasonCapExceeded},
		{name: "days cap", amount: 100, days: MaxLoanDays + 1, want: ReasonCapExceeded},
		{name: "zero days", amount: 100, days: 0, want: ReasonInvalidAmount},
		{name: "zero amount", amount: 0, days: 3, want: ReasonInvalidAmount},
	}
	for _, tc := range tests {
		out, err := h.svc.Loan(ctx, ActionInput{UserID: "lender", TargetID: "b", Amount: tc.amount, Days: tc.days})
		if err != nil || out.Success || out.Reason != tc.want {
			t.Fatalf("%s: success=%v reason=%q err=%v", tc.name, out.Success, out.Reason, err)
		}
	}

	out, err := h.svc.Loan(ctx, ActionInput{UserID: "lender", TargetID: "b", Amount: MaxLoanAmount, Days: MaxLoanDays})
	expectApplied(t, out, err)
	out, err = h.svc.Loan(ctx, ActionInput{UserID: "lender", TargetID: "b", Amount: 10, Days: 1})
	expectDenied(t, out, err, ReasonLoanOpen)

	h.seed(t, Profile{UserID: "poor", Balance: 10})
	out, err = h.svc.Loan(ctx, ActionInput{UserID: "poor", TargetID: "c", Amount: 11, Days: 1})
	expectDenied(t, out, err, ReasonInsufficientFunds)
}

func TestRepayClosesLoan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "lender", Balance: 10_000})
	h.seed(t, Profile{UserID: "borrower", Balance: 200})

	out, err := h.svc.Loan(ctx, ActionInput{UserID: "lender", TargetID: "borrower", Amount: 5_000, Days: 7})
	expectApplied(t, out, err)

	h.clock.Advance(24 * time.Hour)
	out, err = h.svc.Repay(ctx, ActionInput{UserID: "borrower"})
	expectApplied(t, out, err)
	if out.Profile.Balance != 200 || out.Target.UserID != "lender" || out.Target.Balance != 10_000 {
		t.Fatalf("after repay: borrower %d lender %+v", out.Profile.Balance, out.Target)
	}
	if out.Effect.Loan == nil || out.Effect.Loan.Status != LoanRepaid {
		t.Fatalf("loan not repaid: %+v", out.Effect.Loan)
	}

	out, err = h.svc.Repay(ctx, ActionInput{UserID: "borrower"})
	expectDenied(t, out, err, ReasonNoLoan)

	view, err := h.svc.Loans(ctx, "lender")
	if err != nil {
		t.Fatalf("loans: %v", err)
	}
	if len(view.Lent) != 1 || view.Lent[0].Status != LoanRepaid || len(view.Borrowed) != 0 {
		t.Fatalf("unexpected loan view %+v", view)
	}
}

func TestRepayNeedsFunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "lender", Balance: 10_000})

	out, err := h.svc.Loan(ctx, ActionInput{UserID: "lender", TargetID: "borrower", Amount: 1_000, Days: 2})
	expectApplied(t, out, err)
	out, err = h.svc.Gift(ctx, ActionInput{UserID: "borrower", TargetID: "other", Amount: 500})
	expectApplied(t, out, err)

	out, err = h.svc.Repay(ctx, ActionInput{UserID: "borrower"})
	expectDenied(t, out, err, ReasonInsufficientFunds)
}

func TestClosedLoansAreBounded(t *testing.T) {
	p := Profile{}
	for i := 0; i < maxClosedLoans+5; i++ {
		p.Loans = append(p.Loans, Loan{ID: string(rune('a' + i)), Status: LoanRepaid})
	}
	p.Loans = append(p.Loans, Loan{ID: "open", Status: LoanOpen})
	p.trimClosedLoans()
	if len(p.Loans) != maxClosedLoans+1 {
		t.Fatalf("kept %d loans", len(p.Loans))
	}
	if _, _, ok := p.OpenLoan(); !ok {
		t.Fatalf("open loan dropped")
	}
	if p.Loans[0].ID != string(rune('a'+5)) {
		t.Fatalf("oldest closed loans should go first, kept %s", p.Loans[0].ID)
	}
}

func TestRobTooPoorIsDeniedBeforeAnyDraw(t *testing.T) {
	h := newHarness(t)
	h.seed(t, Profile{UserID: "robber", Balance: 500})
	h.seed(t, Profile{UserID: "victim", Balance: 40, VaultBalance: 50_000})

	out, err := h.svc.Rob(context.Background(), ActionInput{UserID: "robber", TargetID: "victim"})
	expectDenied(t, out, err, ReasonTargetTooPoor)
	if h.roll.Calls() != 0 {
		t.Fatalf("random source consulted %d times", h.roll.Calls())
	}
	rp := h.stored(t, "robber")
	if _, ok := rp.lastAction(ActionRob); ok {
		t.Fatalf("denied rob must not start the cooldown")
	}
}

func TestRobSuccessSparesVault(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "robber"})
	h.seed(t, Profile{UserID: "victim", Balance: 1_000, VaultBalance: 5_000})

	// win, 20%, xp 5
	h.roll.queue([]float64{0.1}, 10, 0)
	out, err := h.svc.Rob(ctx, ActionInput{UserID: "robber", TargetID: "victim"})
	expectApplied(t, out, err)
	if !out.Effect.Won || out.Profile.Balance != 200 || out.Target.Balance != 800 || out.Target.VaultBalance != 5_000 {
		t.Fatalf("rob result: effect %+v robber %d victim %d/%d", out.Effect, out.Profile.Balance, out.Target.Balance, out.Target.VaultBalance)
	}
	if !out.Profile.HasAchievement(AchievementRobber) {
		t.Fatalf("missing robber achievement")
	}

	out, err = h.svc.Rob(ctx, ActionInput{UserID: "robber", TargetID: "victim"})
	expectDenied(t, out, err, ReasonCooldown)
	if out.RetryAfter != time.Hour {
		t.Fatalf("retry after %v", out.RetryAfter)
	}
}

func TestRobFailureOnlyCostsAttacker(t *testing.T) {
	h := newHarness(t)
	h.seed(t, Profile{UserID: "robber", Balance: 1_000})
	h.seed(t, Profile{UserID: "victim", Balance: 1_000})

	h.roll.queue([]float64{0.9})
	out, err := h.svc.Rob(context.Background(), ActionInput{UserID: "robber", TargetID: "victim"})
	expectApplied(t, out, err)
	if out.Effect.Won || out.Profile.Balance != 800 || out.Target.Balance != 1_000 {
		t.Fatalf("rob failure: robber %d victim %d", out.Profile.Balance, out.Target.Balance)
	}
}

func TestVault(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, Profile{UserID: "plain", Balance: 1_000})
	h.seed(t, Profile{UserID: "vip", Balance: 1_000, Premium: true, PremiumExpiresAt: timePtr(epoch.Add(time.Hour))})

	out, err := h.svc.VaultDeposit(ctx, ActionInput{UserID: "plain", Amount: 100})
	expectDenied(t, out, err, ReasonNotPremium)

	out, err = h.svc.VaultDeposit(ctx, ActionInput{UserID: "vip", Amount: 600})
	expectApplied(t, out, err)
	if out.Profile.Balance != 400 || out.Profile.VaultBalance != 600 {
		t.Fatalf("after deposit %d/%d", out.Profile.Balance, out.Profile.VaultBalance)
	}
	out, err = h.svc.VaultDeposit(ctx, ActionInput{UserID: "vip", Amount: 401})
	expectDenied(t, out, err, ReasonInsufficientFunds)

	h.clock.Advance(2 * time.Hour)
	out, err = h.svc.VaultWithdraw(ctx, ActionInput{UserID: "vip", Amount: 601})
	expectDenied(t, out, err, ReasonInsufficientFunds)
	out, err = h.svc.VaultWithdraw(ctx, ActionInput{UserID: "vip", Amount: 600})
	expectApplied(t, out, err)
	if out.Profile.Balance != 1_000 || out.Profile.VaultBalance != 0 || out.Profile.Premium {
		t.Fatalf("lapsed member withdraw: %+v", out.Profile)
	}
}
