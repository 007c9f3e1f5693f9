package game

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// Job is an ordered employment tier. The zero value is not a valid job.
type Job string

const (
	JobHomeless      Job = "Homeless"
	JobStreetCleaner Job = "Street Cleaner"
	JobCashier       Job = "Cashier"
	JobOfficeWorker  Job = "Office Worker"
	JobManager       Job = "Manager"
	JobCEO           Job = "CEO"
)

type jobTier struct {
	Job        Job
	Multiplier float64
	// Balance needed to be promoted into this tier from the one before it.
	Threshold int64
}

var jobLadder = []jobTier{
	{JobHomeless, 0.5, 0},
	{JobStreetCleaner, 1.0, 1_000},
	{JobCashier, 1.5, 5_000},
	{JobOfficeWorker, 2.0, 25_000},
	{JobManager, 3.0, 100_000},
	{JobCEO, 5.0, 500_000},
}

// Rank returns the job's position on the ladder, or -1 for an unknown job.
func (j Job) Rank() int {
	for i, t := range jobLadder {
		if t.Job == j {
			return i
		}
	}
	return -1
}

func (j Job) Valid() bool { return j.Rank() >= 0 }

// ParseJob matches a job name case-insensitively, ignoring spaces and underscores.
func ParseJob(s string) (Job, error) {
	norm := func(v string) string {
		v = strings.ToLower(strings.TrimSpace(v))
		v = strings.ReplaceAll(v, "_", "")
		return strings.ReplaceAll(v, " ", "")
	}
	want := norm(s)
	for _, t := range jobLadder {
		if norm(string(t.Job)) == want {
			return t.Job, nil
		}
	}
	return "", fmt.Errorf("unknown job %q", s)
}

// Action names a cooldown-gated or otherwise tracked command.
type Action string

const (
	ActionWork          Action = "work"
	ActionCrime         Action = "crime"
	ActionRob           Action = "rob"
	ActionDaily         Action = "daily"
	ActionPremiumDaily  Action = "premium_daily"
	ActionGamble        Action = "gamble"
	ActionPremiumCasino Action = "premium_casino"
	ActionHeist         Action = "heist"
	ActionPremiumHeist  Action = "premium_heist"
)

type cooldownRule struct {
	Base          time.Duration
	PremiumHalves bool
}

var cooldownRules = map[Action]cooldownRule{
	ActionWork:          {Base: 5 * time.Minute, PremiumHalves: true},
	ActionCrime:         {Base: 10 * time.Minute},
	ActionRob:           {Base: time.Hour},
	ActionDaily:         {Base: 24 * time.Hour},
	ActionPremiumDaily:  {Base: 24 * time.Hour},
	ActionPremiumCasino: {Base: 30 * time.Second},
	ActionHeist:         {Base: 2 * time.Hour},
	ActionPremiumHeist:  {Base: time.Hour},
}

// Item is a shop item. Ownership is boolean; effects are keyed by action.
type Item struct {
	ID          string
	Name        string
	Price       int64
	Description string
	// Reward multipliers by action.
	Bonus map[Action]float64
	// Replacement base cooldowns by action.
	Cooldown map[Action]time.Duration
}

var itemCatalog = []Item{
	{ID: "phone", Name: "Phone", Price: 500, Description: "+10% work earnings", Bonus: map[Action]float64{ActionWork: 1.1}},
	{ID: "laptop", Name: "Laptop", Price: 2_000, Description: "+25% work earnings", Bonus: map[Action]float64{ActionWork: 1.25}},
	{ID: "watch", Name: "Watch", Price: 5_000, Description: "+15% crime payouts", Bonus: map[Action]float64{ActionCrime: 1.15}},
	{ID: "car", Name: "Car", Price: 10_000, Description: "Work cooldown 5m -> 3m", Cooldown: map[Action]time.Duration{ActionWork: 3 * time.Minute}},
	{ID: "house", Name: "House", Price: 50_000, Description: "+50% daily bonus", Bonus: map[Action]float64{ActionDaily: 1.5}},
}

// Items returns the shop catalog in display order.
func Items() []Item {
	out := make([]Item, len(itemCatalog))
	copy(out, itemCatalog)
	return out
}

func itemByID(id string) (Item, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, it := range itemCatalog {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// PremiumPlan is a purchasable entitlement. Duration 0 means lifetime.
type PremiumPlan struct {
	ID       string
	Price    int64
	Duration time.Duration
}

var premiumPlans = []PremiumPlan{
	{ID: "week", Price: 10_000, Duration: 7 * 24 * time.Hour},
	{ID: "month", Price: 35_000, Duration: 30 * 24 * time.Hour},
	{ID: "lifetime", Price: 100_000},
}

func PremiumPlans() []PremiumPlan {
	out := make([]PremiumPlan, len(premiumPlans))
	copy(out, premiumPlans)
	return out
}

func premiumPlanByID(id string) (PremiumPlan, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range premiumPlans {
		if p.ID == id {
			return p, true
		}
	}
	return PremiumPlan{}, false
}

const (
	TimedPremiumMultiplier    = 3.0
	LifetimePremiumMultiplier = 5.0

	MaxLoanAmount = int64(50_000)
	MaxLoanDays   = 30

	RobMinimumTarget     = int64(100)
	PremiumCasinoMinimum = int64(1_000)
	DefaultAdminGrant    = int64(1_000_000)

	// A heist crew is the leader plus 1..MaxHeistCrew others.
	MaxHeistCrew = 4

	maxClosedLoans   = 10
	maxRecentCmds    = 32
	profileKeyPrefix = "user_"
)

// WealthStatus is a display band derived from balance.
type WealthStatus string

const (
	StatusBroke          WealthStatus = "Broke"
	StatusGettingStarted WealthStatus = "Getting Started"
	StatusMiddleClass    WealthStatus = "Middle Class"
	StatusRich           WealthStatus = "Rich"
	StatusVeryRich       WealthStatus = "Very Rich"
	StatusMillionaire    WealthStatus = "Millionaire"
)

func StatusFor(balance int64) WealthStatus {
	switch {
	case balance < 100:
		return StatusBroke
	case balance < 1_000:
		return StatusGettingStarted
	case balance < 10_000:
		return StatusMiddleClass
	case balance < 100_000:
		return StatusRich
	case balance < 1_000_000:
		return StatusVeryRich
	default:
		return StatusMillionaire
	}
}

var ErrInvalidSymbol = errors.New("symbol must be exactly 4 uppercase letters")

var symbolRE = regexp.MustCompile(`^[A-Z]{4}$`)

func ValidateSymbol(symbol string) error {
	if !symbolRE.MatchString(strings.TrimSpace(symbol)) {
		return ErrInvalidSymbol
	}
	return nil
}

func notional(price, shares int64) (int64, error) {
	v := new(big.Int).Mul(big.NewInt(price), big.NewInt(shares))
	if !v.IsInt64() {
		return 0, fmt.Errorf("notional overflow")
	}
	return v.Int64(), nil
}
