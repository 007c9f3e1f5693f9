package game

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxGiftMessage = 200

func validTransfer(sender *Profile, amount int64) error {
	if amount <= 0 {
		return deny(ReasonInvalidAmount)
	}
	if amount > sender.Balance {
		return deny(ReasonInsufficientFunds)
	}
	return nil
}

func transfer(sender, recipient *Profile, amount int64, eff *Effect) {
	sender.Balance -= amount
	recipient.Balance += amount
	ApplyPromotion(recipient)
	eff.Amount = -amount
	eff.TargetAmount = amount
}

// Gift moves amount from the actor to TargetID.
func (s *Service) Gift(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutatePair(ctx, "gift", in, func(sender, recipient *Profile, _ time.Time, eff *Effect) error {
		if err := validTransfer(sender, in.Amount); err != nil {
			return err
		}
		transfer(sender, recipient, in.Amount, eff)
		return nil
	})
}

// PremiumGift is a gift only premium members can send, carrying a message.
func (s *Service) PremiumGift(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutatePair(ctx, "premium_gift", in, func(sender, recipient *Profile, now time.Time, eff *Effect) error {
		if active, _ := EvaluatePremium(*sender, now); !active {
			return deny(ReasonNotPremium)
		}
		if err := validTransfer(sender, in.Amount); err != nil {
			return err
		}
		transfer(sender, recipient, in.Amount, eff)
		eff.Message = truncateMessage(in.Message)
		return nil
	})
}

func truncateMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) <= maxGiftMessage {
		return msg
	}
	return string([]rune(msg)[:maxGiftMessage])
}

// Loan lends amount from the actor to TargetID for days. The record lives on
// the borrower's profile.
func (s *Service) Loan(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutatePair(ctx, "loan", in, func(lender, borrower *Profile, now time.Time, eff *Effect) error {
		if in.Amount <= 0 || in.Days < 1 {
			return deny(ReasonInvalidAmount)
		}
		if in.Amount > MaxLoanAmount || in.Days > MaxLoanDays {
			return deny(ReasonCapExceeded)
		}
		if _, _, open := borrower.OpenLoan(); open {
			return deny(ReasonLoanOpen)
		}
		if in.Amount > lender.Balance {
			return deny(ReasonInsufficientFunds)
		}
		loan := Loan{
			ID:         uuid.NewString(),
			LenderID:   lender.UserID,
			BorrowerID: borrower.UserID,
			Principal:  in.Amount,
			CreatedAt:  now,
			MaturesAt:  now.Add(time.Duration(in.Days) * 24 * time.Hour),
			Status:     LoanOpen,
		}
		borrower.Loans = append(borrower.Loans, loan)
		borrower.trimClosedLoans()
		transfer(lender, borrower, in.Amount, eff)
		eff.Loan = &loan
		return nil
	})
}

// Repay settles the actor's open loan, paying the principal back to the
// lender. The lender is only known after reading the borrower, so the record
// is peeked first and re-checked under both locks.
func (s *Service) Repay(ctx context.Context, in ActionInput) (Outcome, error) {
	peek, _, err := s.store.load(ctx, in.UserID, s.now())
	if err != nil {
		return Outcome{}, err
	}
	loan, _, ok := peek.OpenLoan()
	if !ok {
		return s.mutate(ctx, "repay", in, func(*Profile, time.Time, *Effect) error {
			return deny(ReasonNoLoan)
		})
	}
	in.TargetID = loan.LenderID
	return s.mutatePair(ctx, "repay", in, func(borrower, lender *Profile, now time.Time, eff *Effect) error {
		current, idx, ok := borrower.OpenLoan()
		if !ok || current.ID != loan.ID {
			return deny(ReasonNoLoan)
		}
		if borrower.Balance < current.Principal {
			return deny(ReasonInsufficientFunds)
		}
		transfer(borrower, lender, current.Principal, eff)
		closedAt := now
		current.Status = LoanRepaid
		current.ClosedAt = &closedAt
		borrower.Loans[idx] = current
		borrower.trimClosedLoans()
		eff.Loan = &current
		return nil
	})
}

// resolveLoanMaturity defaults an open loan past maturity. The borrower's
// whole unvaulted balance is forfeited; the lender receives nothing.
func resolveLoanMaturity(p *Profile, now time.Time) bool {
	loan, idx, ok := p.OpenLoan()
	if !ok || !now.After(loan.MaturesAt) {
		return false
	}
	closedAt := now
	loan.Status = LoanDefaulted
	loan.ClosedAt = &closedAt
	p.Loans[idx] = loan
	p.Balance = 0
	p.trimClosedLoans()
	return true
}

// Loans lists what userID borrowed and lent. Lent loans held by borrowers who
// have not been loaded since maturity are reported as defaulted.
func (s *Service) Loans(ctx context.Context, userID string) (LoanView, error) {
	own, err := s.Profile(ctx, userID)
	if err != nil {
		return LoanView{}, err
	}
	all, err := s.store.snapshot(ctx)
	if err != nil {
		return LoanView{}, err
	}
	now := s.now()
	view := LoanView{Borrowed: append([]Loan{}, own.Profile.Loans...), Lent: []Loan{}}
	for id, p := range all {
		if id == userID {
			continue
		}
		for _, l := range p.Loans {
			if l.LenderID != userID {
				continue
			}
			if l.Status == LoanOpen && now.After(l.MaturesAt) {
				l.Status = LoanDefaulted
			}
			view.Lent = append(view.Lent, l)
		}
	}
	sort.Slice(view.Lent, func(i, j int) bool { return view.Lent[i].CreatedAt.After(view.Lent[j].CreatedAt) })
	return view, nil
}

// VaultDeposit moves funds into the vault. Requires active premium.
func (s *Service) VaultDeposit(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "vault_deposit", in, func(p *Profile, now time.Time, eff *Effect) error {
		if in.Amount <= 0 {
			return deny(ReasonInvalidAmount)
		}
		if active, _ := EvaluatePremium(*p, now); !active {
			return deny(ReasonNotPremium)
		}
		if in.Amount > p.Balance {
			return deny(ReasonInsufficientFunds)
		}
		p.Balance -= in.Amount
		p.VaultBalance += in.Amount
		eff.Amount = -in.Amount
		return nil
	})
}

// VaultWithdraw moves funds back out. It never requires premium so a lapsed
// member can always reach their savings.
func (s *Service) VaultWithdraw(ctx context.Context, in ActionInput) (Outcome, error) {
	return s.mutate(ctx, "vault_withdraw", in, func(p *Profile, _ time.Time, eff *Effect) error {
		if in.Amount <= 0 {
			return deny(ReasonInvalidAmount)
		}
		if in.Amount > p.VaultBalance {
			return deny(ReasonInsufficientFunds)
		}
		p.VaultBalance -= in.Amount
		p.Balance += in.Amount
		eff.Amount = in.Amount
		progress(p, eff, 0)
		return nil
	})
}
