package discord

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"hustle/internal/game"
)

const (
	colorSuccess = 0x2ecc71
	colorFailure = 0xe74c3c
	colorInfo    = 0x3498db
	colorWarn    = 0xf39c12
	colorPremium = 0xf1c40f
)

var reasonText = map[game.Reason]string{
	game.ReasonCooldown:          "You're on cooldown.",
	game.ReasonInsufficientFunds: "You don't have enough money for that.",
	game.ReasonInvalidAmount:     "That amount isn't valid.",
	game.ReasonTargetTooPoor:     "They're too broke to be worth robbing (minimum " + money(game.RobMinimumTarget) + ").",
	game.ReasonCapExceeded:       "That's over the limit.",
	game.ReasonSelfTarget:        "You can't target yourself.",
	game.ReasonNotPremium:        "That's a premium feature. See `!premium`.",
	game.ReasonAlreadyOwned:      "You already own that.",
	game.ReasonUnknownItem:       "No such item. See `!shop`.",
	game.ReasonUnknownSymbol:     "No such stock. See `!stocks`.",
	game.ReasonLoanOpen:          "There's already an open loan.",
	game.ReasonNoLoan:            "You don't have an open loan.",
	game.ReasonAlreadyPremium:    "You already have lifetime premium.",
	game.ReasonForbidden:         "Only the bot owner can do that.",
	game.ReasonDuplicateCommand:  "That command was already handled.",
	game.ReasonUnknownJob:        "No such job.",
	game.ReasonCrewSize:          fmt.Sprintf("A heist needs between 1 and %d partners.", game.MaxHeistCrew),
}

func field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}

func mention(id string) string { return "<@" + id + ">" }

// notices surfaces lazy corrections and progression carried by any outcome.
func notices(eff game.Effect) []*discordgo.MessageEmbedField {
	var out []*discordgo.MessageEmbedField
	if eff.PremiumExpired {
		out = append(out, field("👑 Premium expired", "Your premium membership has ended.", false))
	}
	if eff.LoanDefaulted {
		out = append(out, field("💸 Loan defaulted", "Your loan matured unpaid and your balance was seized.", false))
	}
	if eff.LeveledUp {
		out = append(out, field("📈 Level Up!", fmt.Sprintf("You reached level %d!", eff.NewLevel), false))
	}
	if eff.Promoted {
		out = append(out, field("🎉 Promotion!", fmt.Sprintf("You got promoted to %s!", eff.NewJob), false))
	}
	if len(eff.Achievements) > 0 {
		out = append(out, field("🏅 Achievement unlocked", strings.Join(achievementNames(eff.Achievements), ", "), false))
	}
	return out
}

func outcomeEmbed(title, description string, out game.Outcome, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	color := colorSuccess
	if out.Effect.Amount < 0 && !out.Effect.Won {
		color = colorWarn
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      append(fields, notices(out.Effect)...),
	}
}

func deniedEmbed(out game.Outcome) *discordgo.MessageEmbed {
	text, ok := reasonText[out.Reason]
	if !ok {
		text = string(out.Reason)
	}
	if out.RetryAfter > 0 {
		text += " Try again in **" + formatDuration(out.RetryAfter) + "**."
	}
	return &discordgo.MessageEmbed{
		Title:       "❌ Not so fast",
		Description: text,
		Color:       colorFailure,
		Fields:      notices(out.Effect),
	}
}

func errorEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "⚠️ Something went wrong",
		Description: "Nothing was changed. Please try again in a moment.",
		Color:       colorFailure,
	}
}

func usageEmbed(prefix string, cmd *command) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❓ Command Help: " + prefix + cmd.Usage,
		Description: cmd.Description,
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			field("📖 Usage", "`"+prefix+cmd.Usage+"`", false),
			field("💡 Example", "`"+prefix+cmd.Example+"`", false),
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Tip: use " + prefix + "help to see all commands"},
	}
}

func notFoundEmbed(prefix, attempted string, suggestions []string) *discordgo.MessageEmbed {
	if len(suggestions) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "❓ Command Not Found",
			Description: fmt.Sprintf("Command `%s%s` doesn't exist. Use `%shelp` to see all commands.", prefix, attempted, prefix),
			Color:       colorFailure,
		}
	}
	lines := make([]string, len(suggestions))
	for i, s := range suggestions {
		lines[i] = "`" + prefix + s + "`"
	}
	return &discordgo.MessageEmbed{
		Title:       "❓ Command Not Found",
		Description: fmt.Sprintf("Command `%s%s` not found. Did you mean:", prefix, attempted),
		Color:       colorWarn,
		Fields:      []*discordgo.MessageEmbedField{field("💡 Suggestions", strings.Join(lines, "\n"), false)},
	}
}

func helpEmbed(prefix string) *discordgo.MessageEmbed {
	groups := map[string][]string{}
	var order []string
	for _, cmd := range commands {
		if _, ok := groups[cmd.Group]; !ok {
			order = append(order, cmd.Group)
		}
		groups[cmd.Group] = append(groups[cmd.Group], "`"+prefix+cmd.Usage+"`")
	}
	embed := &discordgo.MessageEmbed{
		Title:       "💼 Poor to Rich",
		Description: "Start broke, work your way up. Your progress is saved automatically.",
		Color:       colorInfo,
	}
	for _, g := range order {
		embed.Fields = append(embed.Fields, field(g, strings.Join(groups[g], "\n"), false))
	}
	return embed
}

func premiumLabel(p game.Profile, now time.Time) string {
	switch game.PremiumKindOf(p, now) {
	case game.PremiumLifetime:
		return "👑 Lifetime"
	case game.PremiumTimed:
		return "⭐ Active, " + formatDuration(p.PremiumExpiresAt.Sub(now)) + " left"
	default:
		return "None"
	}
}

func profileEmbed(p game.Profile, now time.Time) *discordgo.MessageEmbed {
	color := colorInfo
	if game.PremiumKindOf(p, now) != game.PremiumNone {
		color = colorPremium
	}
	embed := &discordgo.MessageEmbed{
		Title:       "📊 Profile",
		Description: mention(p.UserID),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			field("💰 Money", money(p.Balance), true),
			field("🏦 Vault", money(p.VaultBalance), true),
			field("👔 Job", string(p.Job), true),
			field("📊 Level", fmt.Sprint(p.Level), true),
			field("⭐ Experience", fmt.Sprintf("%d/%d", p.Experience, p.ExperienceRequired()), true),
			field("🏆 Status", string(p.Status()), true),
			field("👑 Premium", premiumLabel(p, now), true),
		},
	}
	if !p.CreatedAt.IsZero() {
		embed.Fields = append(embed.Fields, field("📅 Joined", p.CreatedAt.Format("January 2, 2006"), true))
	}
	if len(p.Achievements) > 0 {
		shown := p.Achievements
		if len(shown) > 5 {
			shown = shown[:5]
		}
		embed.Fields = append(embed.Fields, field("🏅 Achievements", strings.Join(achievementNames(shown), "\n"), false))
	}
	if len(p.Inventory) > 0 {
		embed.Fields = append(embed.Fields, field("🎒 Inventory", strings.Join(p.Inventory, ", "), false))
	}
	if len(p.Portfolio) > 0 {
		symbols := make([]string, 0, len(p.Portfolio))
		for sym := range p.Portfolio {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		lines := make([]string, len(symbols))
		for i, sym := range symbols {
			h := p.Portfolio[sym]
			lines[i] = fmt.Sprintf("%s: %d @ %s", sym, h.Shares, money(h.AvgPrice))
		}
		embed.Fields = append(embed.Fields, field("📈 Portfolio", strings.Join(lines, "\n"), false))
	}
	return embed
}

func achievementNames(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = game.AchievementByID(id).Name
	}
	return out
}

func achievementsEmbed(p game.Profile) *discordgo.MessageEmbed {
	catalog := game.Achievements()
	var lines []string
	for _, a := range catalog {
		mark := "🔒"
		if p.HasAchievement(a.ID) {
			mark = "✅"
		}
		lines = append(lines, fmt.Sprintf("%s **%s**: %s", mark, a.Name, a.Description))
	}
	return &discordgo.MessageEmbed{
		Title:       "🏅 Achievements",
		Description: mention(p.UserID),
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			field(fmt.Sprintf("%d/%d unlocked", len(p.Achievements), len(catalog)), strings.Join(lines, "\n"), false),
		},
	}
}

func loanLine(l game.Loan, other string) string {
	return fmt.Sprintf("%s %s, due %s (%s)", money(l.Principal), other, l.MaturesAt.Format("Jan 2 15:04"), l.Status)
}
