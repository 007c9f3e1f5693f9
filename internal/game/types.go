package game

import (
	"errors"
	"time"
)

// Reason is a machine-readable denial code carried by an Outcome.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonCooldown          Reason = "cooldown"
	ReasonInsufficientFunds Reason = "insufficient_funds"
	ReasonInvalidAmount     Reason = "invalid_amount"
	ReasonTargetTooPoor     Reason = "target_too_poor"
	ReasonCapExceeded       Reason = "cap_exceeded"
	ReasonSelfTarget        Reason = "self_target"
	ReasonNotPremium        Reason = "not_premium"
	ReasonAlreadyOwned      Reason = "already_owned"
	ReasonUnknownItem       Reason = "unknown_item"
	ReasonUnknownSymbol     Reason = "unknown_symbol"
	ReasonLoanOpen          Reason = "loan_open"
	ReasonNoLoan            Reason = "no_loan"
	ReasonAlreadyPremium    Reason = "already_premium"
	ReasonForbidden         Reason = "forbidden"
	ReasonDuplicateCommand  Reason = "duplicate_command"
	ReasonUnknownJob        Reason = "unknown_job"
	ReasonCrewSize          Reason = "crew_size"
)

var (
	ErrCooldown          = errors.New("action on cooldown")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrTargetTooPoor     = errors.New("target balance below minimum")
	ErrCapExceeded       = errors.New("cap exceeded")
	ErrSelfTarget        = errors.New("cannot target yourself")
	ErrNotPremium        = errors.New("premium required")
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrUnknownItem       = errors.New("unknown item")
	ErrStockNotFound     = errors.New("stock not found")
	ErrLoanOpen          = errors.New("loan already open")
	ErrNoLoan            = errors.New("no open loan")
	ErrAlreadyPremium    = errors.New("lifetime premium already active")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateCommand  = errors.New("command already applied")
	ErrUnknownJob        = errors.New("unknown job")
	ErrCrewSize          = errors.New("heist crew size out of range")

	// ErrInvariant marks a state that must never be persisted.
	ErrInvariant = errors.New("profile invariant violated")
)

var reasonErrors = map[Reason]error{
	ReasonCooldown:          ErrCooldown,
	ReasonInsufficientFunds: ErrInsufficientFunds,
	ReasonInvalidAmount:     ErrInvalidAmount,
	ReasonTargetTooPoor:     ErrTargetTooPoor,
	ReasonCapExceeded:       ErrCapExceeded,
	ReasonSelfTarget:        ErrSelfTarget,
	ReasonNotPremium:        ErrNotPremium,
	ReasonAlreadyOwned:      ErrAlreadyOwned,
	ReasonUnknownItem:       ErrUnknownItem,
	ReasonUnknownSymbol:     ErrStockNotFound,
	ReasonLoanOpen:          ErrLoanOpen,
	ReasonNoLoan:            ErrNoLoan,
	ReasonAlreadyPremium:    ErrAlreadyPremium,
	ReasonForbidden:         ErrForbidden,
	ReasonDuplicateCommand:  ErrDuplicateCommand,
	ReasonUnknownJob:        ErrUnknownJob,
	ReasonCrewSize:          ErrCrewSize,
}

// Err returns the sentinel for r, or nil for ReasonNone.
func (r Reason) Err() error {
	return reasonErrors[r]
}

// ActionInput carries every parameter a command may need. Unused fields are
// ignored by each operation.
type ActionInput struct {
	UserID   string
	TargetID string
	Amount   int64
	Days     int
	Item     string
	Plan     string
	Symbol   string
	Shares   int64
	Message  string
	Job      string
	// Crew lists the other participants of a group action.
	Crew       []string
	CommandKey string
}

// Effect summarises what an action did. Amount is the signed change to the
// actor's balance and TargetAmount the same for the other party.
type Effect struct {
	Amount         int64    `json:"amount"`
	TargetAmount   int64    `json:"target_amount,omitempty"`
	XP             int64    `json:"xp,omitempty"`
	Won            bool     `json:"won,omitempty"`
	Multiplier     float64  `json:"multiplier,omitempty"`
	LeveledUp      bool     `json:"leveled_up,omitempty"`
	NewLevel       int      `json:"new_level,omitempty"`
	Promoted       bool     `json:"promoted,omitempty"`
	NewJob         Job      `json:"new_job,omitempty"`
	Achievements   []string `json:"achievements,omitempty"`
	LoanDefaulted  bool     `json:"loan_defaulted,omitempty"`
	PremiumExpired bool     `json:"premium_expired,omitempty"`
	Loan           *Loan    `json:"loan,omitempty"`
	Item           string   `json:"item,omitempty"`
	Symbol         string   `json:"symbol,omitempty"`
	Shares         int64    `json:"shares,omitempty"`
	Price          int64    `json:"price,omitempty"`
	Message        string   `json:"message,omitempty"`
	// CrewAmounts is each crew member's balance change in a group action.
	CrewAmounts map[string]int64 `json:"crew_amounts,omitempty"`
}

// Outcome is returned by every engine operation. Success means the action was
// applied; whether a risk roll came up in the user's favour is Effect.Won.
type Outcome struct {
	Success    bool          `json:"success"`
	Reason     Reason        `json:"reason,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Profile    Profile       `json:"profile"`
	Target     *Profile      `json:"target,omitempty"`
	Crew       []Profile     `json:"crew,omitempty"`
	Effect     Effect        `json:"effect"`
}

// Err returns the denial sentinel, or nil when the action was applied.
func (o Outcome) Err() error {
	if o.Success {
		return nil
	}
	return o.Reason.Err()
}

type LeaderboardRow struct {
	Rank    int          `json:"rank"`
	UserID  string       `json:"user_id"`
	Balance int64        `json:"balance"`
	Job     Job          `json:"job"`
	Level   int          `json:"level"`
	Status  WealthStatus `json:"status"`
}

// LoanView lists loans a user borrowed and lent.
type LoanView struct {
	Borrowed []Loan `json:"borrowed"`
	Lent     []Loan `json:"lent"`
}

// Denial is returned by a rule check that refuses an action. It unwraps to
// the reason's sentinel.
type Denial struct {
	Reason     Reason
	RetryAfter time.Duration
}

func (d *Denial) Error() string {
	if d.RetryAfter > 0 {
		return string(d.Reason) + ": retry after " + d.RetryAfter.String()
	}
	return string(d.Reason)
}

func (d *Denial) Unwrap() error { return d.Reason.Err() }

func deny(r Reason) error { return &Denial{Reason: r} }
