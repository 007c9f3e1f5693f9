package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const profileSchemaVersion = 2

type LoanStatus string

const (
	LoanOpen      LoanStatus = "open"
	LoanRepaid    LoanStatus = "repaid"
	LoanDefaulted LoanStatus = "defaulted"
)

// Loan is recorded on the borrower's profile.
type Loan struct {
	ID         string     `json:"id"`
	LenderID   string     `json:"lender_id"`
	BorrowerID string     `json:"borrower_id"`
	Principal  int64      `json:"principal"`
	CreatedAt  time.Time  `json:"created_at"`
	MaturesAt  time.Time  `json:"matures_at"`
	Status     LoanStatus `json:"status"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// Holding is a stock position. AvgPrice is the weighted purchase price.
type Holding struct {
	Shares   int64 `json:"shares"`
	AvgPrice int64 `json:"avg_price"`
}

// Profile is the single persisted record per user identity.
type Profile struct {
	UserID           string               `json:"user_id"`
	Balance          int64                `json:"balance"`
	VaultBalance     int64                `json:"vault_balance"`
	Job              Job                  `json:"job"`
	Level            int                  `json:"level"`
	Experience       int64                `json:"experience"`
	Cooldowns        map[Action]time.Time `json:"cooldowns,omitempty"`
	Inventory        []string             `json:"inventory,omitempty"`
	Achievements     []string             `json:"achievements,omitempty"`
	Premium          bool                 `json:"premium"`
	PremiumExpiresAt *time.Time           `json:"premium_expires_at,omitempty"`
	Loans            []Loan               `json:"loans,omitempty"`
	Portfolio        map[string]Holding   `json:"portfolio,omitempty"`
	RecentCommands   []string             `json:"recent_commands,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	SchemaVersion    int                  `json:"schema_version"`
}

func newProfile(userID string, now time.Time) Profile {
	return Profile{
		UserID:        userID,
		Job:           JobHomeless,
		Level:         1,
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: profileSchemaVersion,
	}
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

// Clone returns a deep copy so callers can mutate freely.
func (p Profile) Clone() Profile {
	out := p
	if p.Cooldowns != nil {
		out.Cooldowns = make(map[Action]time.Time, len(p.Cooldowns))
		for k, v := range p.Cooldowns {
			out.Cooldowns[k] = v
		}
	}
	out.Inventory = append([]string(nil), p.Inventory...)
	out.Achievements = append([]string(nil), p.Achievements...)
	out.RecentCommands = append([]string(nil), p.RecentCommands...)
	if p.PremiumExpiresAt != nil {
		t := *p.PremiumExpiresAt
		out.PremiumExpiresAt = &t
	}
	if p.Loans != nil {
		out.Loans = make([]Loan, len(p.Loans))
		for i, l := range p.Loans {
			if l.ClosedAt != nil {
				t := *l.ClosedAt
				l.ClosedAt = &t
			}
			out.Loans[i] = l
		}
	}
	if p.Portfolio != nil {
		out.Portfolio = make(map[string]Holding, len(p.Portfolio))
		for k, v := range p.Portfolio {
			out.Portfolio[k] = v
		}
	}
	return out
}

func (p Profile) HasItem(id string) bool {
	for _, it := range p.Inventory {
		if it == id {
			return true
		}
	}
	return false
}

func (p *Profile) addItem(id string) {
	if p.HasItem(id) {
		return
	}
	p.Inventory = append(p.Inventory, id)
	sort.Strings(p.Inventory)
}

func (p Profile) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// grantAchievement appends id once. It reports whether it was new.
func (p *Profile) grantAchievement(id string) bool {
	if p.HasAchievement(id) {
		return false
	}
	p.Achievements = append(p.Achievements, id)
	return true
}

func (p Profile) lastAction(a Action) (time.Time, bool) {
	t, ok := p.Cooldowns[a]
	return t, ok
}

func (p *Profile) markAction(a Action, now time.Time) {
	if p.Cooldowns == nil {
		p.Cooldowns = map[Action]time.Time{}
	}
	p.Cooldowns[a] = now
}

// OpenLoan returns the borrower's outstanding loan, if any.
func (p Profile) OpenLoan() (Loan, int, bool) {
	for i, l := range p.Loans {
		if l.Status == LoanOpen {
			return l, i, true
		}
	}
	return Loan{}, -1, false
}

// trimClosedLoans keeps the open loan plus the most recent closed ones.
func (p *Profile) trimClosedLoans() {
	closed := 0
	for i := len(p.Loans) - 1; i >= 0; i-- {
		if p.Loans[i].Status == LoanOpen {
			continue
		}
		closed++
		if closed > maxClosedLoans {
			p.Loans = append(p.Loans[:i], p.Loans[i+1:]...)
		}
	}
}

func (p Profile) seenCommand(key string) bool {
	if key == "" {
		return false
	}
	for _, k := range p.RecentCommands {
		if k == key {
			return true
		}
	}
	return false
}

func (p *Profile) rememberCommand(key string) {
	if key == "" {
		return
	}
	p.RecentCommands = append(p.RecentCommands, key)
	if n := len(p.RecentCommands); n > maxRecentCmds {
		p.RecentCommands = append([]string(nil), p.RecentCommands[n-maxRecentCmds:]...)
	}
}

// NetWorth is cash plus vault. Stock holdings are valued by the caller.
func (p Profile) NetWorth() int64 {
	return p.Balance + p.VaultBalance
}

func (p Profile) ExperienceRequired() int64 {
	return levelRequirement(p.Level)
}

func (p Profile) Status() WealthStatus {
	return StatusFor(p.Balance)
}

// validate reports states that must never be persisted.
func (p Profile) validate() error {
	switch {
	case p.Balance < 0:
		return fmt.Errorf("%w: negative balance %d", ErrInvariant, p.Balance)
	case p.VaultBalance < 0:
		return fmt.Errorf("%w: negative vault %d", ErrInvariant, p.VaultBalance)
	case p.Level < 1:
		return fmt.Errorf("%w: level %d", ErrInvariant, p.Level)
	case p.Experience < 0:
		return fmt.Errorf("%w: negative experience %d", ErrInvariant, p.Experience)
	}
	open := 0
	for _, l := range p.Loans {
		if l.Status == LoanOpen {
			open++
		}
	}
	if open > 1 {
		return fmt.Errorf("%w: %d open loans", ErrInvariant, open)
	}
	for sym, h := range p.Portfolio {
		if h.Shares <= 0 {
			return fmt.Errorf("%w: holding %s has %d shares", ErrInvariant, sym, h.Shares)
		}
	}
	return nil
}

func encodeProfile(p Profile) ([]byte, error) {
	p.SchemaVersion = profileSchemaVersion
	return json.Marshal(p)
}

// legacyFields are the names used by records written before schema version 2.
type legacyFields struct {
	Money          *int64          `json:"money"`
	LastWork       *string         `json:"last_work"`
	LastCrime      *string         `json:"last_crime"`
	LastDaily      *string         `json:"last_daily"`
	InventoryMap   json.RawMessage `json:"inventory"`
	PremiumExpires *string         `json:"premium_expires"`
	CreatedAtText  *string         `json:"created_at"`
}

// decodeProfile tolerates missing fields and pre-v2 records.
func decodeProfile(userID string, raw []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		if legacy, lerr := decodeLegacyProfile(userID, raw); lerr == nil {
			return legacy, nil
		}
		return Profile{}, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	if p.SchemaVersion < profileSchemaVersion && hasLegacyFields(raw) {
		if legacy, err := decodeLegacyProfile(userID, raw); err == nil {
			return legacy, nil
		}
	}
	normalizeProfile(&p, userID)
	return p, nil
}

// hasLegacyFields reports whether raw carries any pre-v2 field name or an
// object-shaped inventory. A record that merely lacks schema_version is
// decoded as current.
func hasLegacyFields(raw []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	for _, name := range []string{"money", "last_work", "last_crime", "last_daily", "premium_expires"} {
		if _, ok := fields[name]; ok {
			return true
		}
	}
	inv := bytes.TrimSpace(fields["inventory"])
	return len(inv) > 0 && inv[0] == '{'
}

func decodeLegacyProfile(userID string, raw []byte) (Profile, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Profile{}, err
	}
	var lf legacyFields
	if err := json.Unmarshal(raw, &lf); err != nil {
		return Profile{}, err
	}
	var p Profile
	// Fields shared across versions decode directly; failures are ignored
	// so one odd field does not lose the whole record.
	decodeField(generic, "job", &p.Job)
	decodeField(generic, "level", &p.Level)
	decodeField(generic, "experience", &p.Experience)
	decodeField(generic, "achievements", &p.Achievements)
	decodeField(generic, "premium", &p.Premium)
	decodeField(generic, "balance", &p.Balance)
	decodeField(generic, "vault_balance", &p.VaultBalance)
	decodeField(generic, "cooldowns", &p.Cooldowns)
	decodeField(generic, "premium_expires_at", &p.PremiumExpiresAt)
	decodeField(generic, "loans", &p.Loans)
	decodeField(generic, "portfolio", &p.Portfolio)
	decodeField(generic, "recent_commands", &p.RecentCommands)
	decodeField(generic, "updated_at", &p.UpdatedAt)

	if lf.Money != nil {
		p.Balance = *lf.Money
	}
	for action, v := range map[Action]*string{ActionWork: lf.LastWork, ActionCrime: lf.LastCrime, ActionDaily: lf.LastDaily} {
		if t, ok := parseLegacyTime(v); ok {
			p.markAction(action, t)
		}
	}
	if t, ok := parseLegacyTime(lf.PremiumExpires); ok {
		p.PremiumExpiresAt = &t
	}
	if t, ok := parseLegacyTime(lf.CreatedAtText); ok {
		p.CreatedAt = t
	}
	if len(lf.InventoryMap) > 0 {
		var asMap map[string]json.RawMessage
		var asList []string
		switch {
		case json.Unmarshal(lf.InventoryMap, &asMap) == nil:
			for id := range asMap {
				p.addItem(id)
			}
		case json.Unmarshal(lf.InventoryMap, &asList) == nil:
			for _, id := range asList {
				p.addItem(id)
			}
		}
	}
	normalizeProfile(&p, userID)
	return p, nil
}

func decodeField(fields map[string]json.RawMessage, name string, out any) {
	if raw, ok := fields[name]; ok {
		_ = json.Unmarshal(raw, out)
	}
}

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseLegacyTime(v *string) (time.Time, bool) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return time.Time{}, false
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(*v), time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeProfile(p *Profile, userID string) {
	p.UserID = userID
	if p.Job == "" {
		p.Job = JobHomeless
	}
	if p.Level < 1 {
		p.Level = 1
	}
	if p.Experience < 0 {
		p.Experience = 0
	}
	sort.Strings(p.Inventory)
	p.SchemaVersion = profileSchemaVersion
}
