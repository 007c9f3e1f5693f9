package game

func levelRequirement(level int) int64 {
	return int64(level) * 100
}

// ApplyExperience adds gained XP and levels up at most once. Experience resets
// to zero on level-up; anything past the requirement is discarded.
func ApplyExperience(p *Profile, gained int64) bool {
	if gained > 0 {
		p.Experience += gained
	}
	if p.Experience >= levelRequirement(p.Level) {
		p.Level++
		p.Experience = 0
		return true
	}
	return false
}

// ApplyPromotion advances at most one tier when the balance meets the next
// tier's threshold. Jobs never move down here.
func ApplyPromotion(p *Profile) bool {
	r := p.Job.Rank()
	if r < 0 || r+1 >= len(jobLadder) {
		return false
	}
	next := jobLadder[r+1]
	if p.Balance >= next.Threshold {
		p.Job = next.Job
		return true
	}
	return false
}

const (
	AchievementFirstPaycheck = "first_paycheck"
	AchievementFirstCrime    = "first_crime"
	AchievementLevel5        = "level_5"
	AchievementLevel10       = "level_10"
	AchievementThousandaire  = "thousandaire"
	AchievementMillionaire   = "millionaire"
	AchievementTopJob        = "top_job"
	AchievementHighRoller    = "high_roller"
	AchievementRobber        = "robber"
	AchievementInvestor      = "investor"
	AchievementPremium       = "premium_member"
	AchievementHeist         = "heist_crew"
	AchievementMastermind    = "mastermind"
)

// AchievementInfo is the display form of an achievement id.
type AchievementInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var achievementCatalog = []AchievementInfo{
	{AchievementFirstPaycheck, "First Paycheck", "Finish a shift"},
	{AchievementFirstCrime, "First Crime", "Pull off a crime"},
	{AchievementLevel5, "Level 5", "Reach level 5"},
	{AchievementLevel10, "Level 10", "Reach level 10"},
	{AchievementThousandaire, "Thousandaire", "Hold $1,000"},
	{AchievementMillionaire, "Millionaire", "Hold $1,000,000"},
	{AchievementTopJob, "Corner Office", "Become CEO"},
	{AchievementHighRoller, "High Roller", "Win $10,000 in one bet"},
	{AchievementRobber, "Robber", "Rob someone successfully"},
	{AchievementInvestor, "Investor", "Buy your first shares"},
	{AchievementPremium, "Premium Member", "Buy a premium plan"},
	{AchievementHeist, "Heist Crew", "Survive a successful heist"},
	{AchievementMastermind, "Mastermind", "Lead a successful heist"},
}

// Achievements returns the catalog in display order.
func Achievements() []AchievementInfo {
	out := make([]AchievementInfo, len(achievementCatalog))
	copy(out, achievementCatalog)
	return out
}

// AchievementByID looks up a catalog entry. Unknown ids come back with the id
// as the name.
func AchievementByID(id string) AchievementInfo {
	for _, a := range achievementCatalog {
		if a.ID == id {
			return a
		}
	}
	return AchievementInfo{ID: id, Name: id}
}

// awardMilestones grants threshold achievements plus any event ones passed in.
// It returns the newly earned ids in grant order.
func awardMilestones(p *Profile, events ...string) []string {
	var earned []string
	grant := func(id string) {
		if p.grantAchievement(id) {
			earned = append(earned, id)
		}
	}
	for _, e := range events {
		grant(e)
	}
	if p.Level >= 5 {
		grant(AchievementLevel5)
	}
	if p.Level >= 10 {
		grant(AchievementLevel10)
	}
	if p.Balance >= 1_000 {
		grant(AchievementThousandaire)
	}
	if p.Balance >= 1_000_000 {
		grant(AchievementMillionaire)
	}
	if p.Job == JobCEO {
		grant(AchievementTopJob)
	}
	return earned
}
