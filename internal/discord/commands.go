package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"hustle/internal/game"
)

// call is one parsed invocation.
type call struct {
	UserID    string
	MessageID string
	Args      []string
}

type command struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Example     string
	Group       string
	// MinArgs is the number of positional arguments that must be present.
	MinArgs int
	run     func(*Bot, context.Context, call) (*discordgo.MessageEmbed, error)
}

var (
	commands []*command
	byName   map[string]*command
)

func init() {
	commands = []*command{
		{Name: "help", Aliases: []string{"start"}, Usage: "help [command]", Example: "help gift", Description: "Show commands, or help for one command", Group: "📚 Basics", run: (*Bot).cmdHelp},
		{Name: "profile", Aliases: []string{"bal", "balance"}, Usage: "profile [@user]", Example: "profile @JohnDoe", Description: "Show a profile", Group: "📚 Basics", run: (*Bot).cmdProfile},
		{Name: "work", Usage: "work", Example: "work", Description: "Earn money from your job", Group: "💼 Earning", run: (*Bot).cmdWork},
		{Name: "crime", Usage: "crime", Example: "crime", Description: "Risky money with a chance of a fine", Group: "💼 Earning", run: (*Bot).cmdCrime},
		{Name: "daily", Usage: "daily", Example: "daily", Description: "Claim your daily bonus", Group: "💼 Earning", run: (*Bot).cmdDaily},
		{Name: "gamble", Usage: "gamble <amount>", Example: "gamble 500", Description: "Double or nothing", Group: "🎲 Risk", MinArgs: 1, run: (*Bot).cmdGamble},
		{Name: "rob", Usage: "rob @user", Example: "rob @JohnDoe", Description: "Try to rob another player (they need at least $100)", Group: "🎲 Risk", MinArgs: 1, run: (*Bot).cmdRob},
		{Name: "heist", Usage: "heist @user [@user...]", Example: "heist @JohnDoe @JaneDoe", Description: "Rob the bank with up to 4 partners. Everyone shares the odds", Group: "🎲 Risk", MinArgs: 1, run: (*Bot).cmdHeist},
		{Name: "shop", Usage: "shop", Example: "shop", Description: "List items and premium plans", Group: "🛒 Shop", run: (*Bot).cmdShop},
		{Name: "buy", Usage: "buy <item>", Example: "buy phone", Description: "Buy an item from the shop", Group: "🛒 Shop", MinArgs: 1, run: (*Bot).cmdBuy},
		{Name: "gift", Usage: "gift @user <amount>", Example: "gift @JohnDoe 1000", Description: "Gift money to another player", Group: "🤝 Social", MinArgs: 2, run: (*Bot).cmdGift},
		{Name: "deal", Aliases: []string{"loan"}, Usage: "deal @user <amount> <days>", Example: "deal @JohnDoe 5000 7", Description: "Lend money (max $50,000, 30 days). Unpaid loans wipe the borrower", Group: "🤝 Social", MinArgs: 3, run: (*Bot).cmdDeal},
		{Name: "repay", Usage: "repay", Example: "repay", Description: "Repay your open loan", Group: "🤝 Social", run: (*Bot).cmdRepay},
		{Name: "loans", Usage: "loans", Example: "loans", Description: "Loans you borrowed and lent", Group: "🤝 Social", run: (*Bot).cmdLoans},
		{Name: "achievements", Aliases: []string{"ach"}, Usage: "achievements [@user]", Example: "achievements @JohnDoe", Description: "Unlocked and locked achievements", Group: "📚 Basics", run: (*Bot).cmdAchievements},
		{Name: "leaderboard", Aliases: []string{"lb", "top"}, Usage: "leaderboard [limit]", Example: "leaderboard 10", Description: "Richest players", Group: "🤝 Social", run: (*Bot).cmdLeaderboard},
		{Name: "stocks", Usage: "stocks", Example: "stocks", Description: "Current stock prices", Group: "📈 Market", run: (*Bot).cmdStocks},
		{Name: "invest", Usage: "invest <stock> <shares>", Example: "invest TECH 10", Description: "Buy shares", Group: "📈 Market", MinArgs: 2, run: (*Bot).cmdInvest},
		{Name: "sell", Usage: "sell <stock> <shares>", Example: "sell TECH 10", Description: "Sell shares", Group: "📈 Market", MinArgs: 2, run: (*Bot).cmdSell},
		{Name: "premium", Aliases: []string{"premiumstatus"}, Usage: "premium", Example: "premium", Description: "Your premium status and benefits", Group: "👑 Premium", run: (*Bot).cmdPremium},
		{Name: "buypremium", Usage: "buypremium <plan>", Example: "buypremium month", Description: "Buy premium: week, month or lifetime", Group: "👑 Premium", MinArgs: 1, run: (*Bot).cmdBuyPremium},
		{Name: "premiumdaily", Usage: "premiumdaily", Example: "premiumdaily", Description: "Claim the premium daily bonus", Group: "👑 Premium", run: (*Bot).cmdPremiumDaily},
		{Name: "premiumcasino", Aliases: []string{"casino"}, Usage: "premiumcasino <amount>", Example: "premiumcasino 5000", Description: "High-stakes table (minimum $1,000)", Group: "👑 Premium", MinArgs: 1, run: (*Bot).cmdPremiumCasino},
		{Name: "premiumgift", Usage: "premiumgift @user <amount> [message]", Example: "premiumgift @JohnDoe 1000 Happy birthday!", Description: "Gift with a personal message", Group: "👑 Premium", MinArgs: 2, run: (*Bot).cmdPremiumGift},
		{Name: "premiumheist", Usage: "premiumheist @user [@user...]", Example: "premiumheist @JohnDoe", Description: "Bigger vault, better odds, shorter cooldown. Leader needs premium", Group: "👑 Premium", MinArgs: 1, run: (*Bot).cmdPremiumHeist},
		{Name: "vault", Usage: "vault [deposit|withdraw] [amount]", Example: "vault deposit 5000", Description: "Robbery-proof savings. Depositing needs premium", Group: "👑 Premium", run: (*Bot).cmdVault},
		{Name: "addmoney", Usage: "addmoney [@user] [amount]", Example: "addmoney @JohnDoe 1000000", Description: "[OWNER] Add money (default $1,000,000)", Group: "🔧 Owner", run: (*Bot).cmdAddMoney},
		{Name: "setmoney", Usage: "setmoney @user <amount>", Example: "setmoney @JohnDoe 50000", Description: "[OWNER] Set an exact balance", Group: "🔧 Owner", MinArgs: 2, run: (*Bot).cmdSetMoney},
		{Name: "setjob", Usage: "setjob @user <job>", Example: "setjob @JohnDoe Manager", Description: "[OWNER] Set a job, including demotions", Group: "🔧 Owner", MinArgs: 2, run: (*Bot).cmdSetJob},
	}
	byName = map[string]*command{}
	for _, c := range commands {
		byName[c.Name] = c
		for _, a := range c.Aliases {
			byName[a] = c
		}
	}
}

func lookup(name string) (*command, bool) {
	c, ok := byName[name]
	return c, ok
}

func commandNames() []string {
	out := make([]string, 0, len(commands))
	for _, c := range commands {
		out = append(out, c.Name)
	}
	return out
}

type actionFunc func(context.Context, game.ActionInput) (game.Outcome, error)

// act runs one engine operation on behalf of the caller. The Discord message
// id is the command key, so a redelivered message is not applied twice.
func (b *Bot) act(ctx context.Context, c call, fn actionFunc, in game.ActionInput, render func(game.Outcome) *discordgo.MessageEmbed) (*discordgo.MessageEmbed, error) {
	in.UserID = c.UserID
	in.CommandKey = c.MessageID
	out, err := fn(ctx, in)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return deniedEmbed(out), nil
	}
	return render(out), nil
}

func (b *Bot) cmdHelp(_ context.Context, c call) (*discordgo.MessageEmbed, error) {
	if len(c.Args) > 0 {
		if cmd, ok := lookup(strings.ToLower(strings.TrimPrefix(c.Args[0], b.prefix))); ok {
			return usageEmbed(b.prefix, cmd), nil
		}
	}
	return helpEmbed(b.prefix), nil
}

func (b *Bot) cmdProfile(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	id := c.UserID
	if len(c.Args) > 0 {
		target, err := parseMention(c.Args[0])
		if err != nil {
			return nil, err
		}
		id = target
	}
	out, err := b.game.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	embed := profileEmbed(out.Profile, b.now())
	embed.Fields = append(embed.Fields, notices(out.Effect)...)
	return embed, nil
}

func (b *Bot) cmdWork(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.act(ctx, c, b.game.Work, game.ActionInput{}, func(out game.Outcome) *discordgo.MessageEmbed {
		return outcomeEmbed("💼 Work Complete!", fmt.Sprintf("You worked as a **%s**.", out.Profile.Job), out,
			field("💰 Earned", money(out.Effect.Amount), true),
			field("💳 Total Money", money(out.Profile.Balance), true),
			field("⭐ XP Gained", fmt.Sprintf("+%d", out.Effect.XP), true),
		)
	})
}

func (b *Bot) cmdCrime(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.act(ctx, c, b.game.Crime, game.ActionInput{}, func(out game.Outcome) *discordgo.MessageEmbed {
		if out.Effect.Won {
			return outcomeEmbed("🦹 Crime Successful!", "You got away with it.", out,
				field("💰 Earned", money(out.Effect.Amount), true),
				field("💳 Total Money", money(out.Profile.Balance), true),
			)
		}
		return outcomeEmbed("🚓 Busted!", "You got caught and paid a fine.", out,
			field("💸 Fine", money(-out.Effect.Amount), true),
			field("💳 Total Money", money(out.Profile.Balance), true),
		)
	})
}

func (b *Bot) cmdDaily(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.act(ctx, c, b.game.Daily, game.ActionInput{}, func(out game.Outcome) *discordgo.MessageEmbed {
		return outcomeEmbed("🎁 Daily Bonus", "Come back tomorrow for more.", out,
			field("💰 Bonus", money(out.Effect.Amount), true),
			field("💳 Total Money", money(out.Profile.Balance), true),
		)
	})
}

func (b *Bot) cmdPremiumDaily(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.act(ctx, c, b.game.PremiumDaily, game.ActionInput{}, func(out game.Outcome) *discordgo.MessageEmbed {
		embed := outcomeEmbed("👑 Premium Daily", "Thanks for being premium.", out,
			field("💰 Bonus", money(out.Effect.Amount), true),
			field("💳 Total Money", money(out.Profile.Balance), true),
		)
		embed.Color = colorPremium
		return embed
	})
}

func stakeOutcome(title string) func(game.Outcome) *discordgo.MessageEmbed {
	return func(out game.Outcome) *discordgo.MessageEmbed {
		if out.Effect.Won {
			return outcomeEmbed(title+" You won!", "", out,
				field("💰 Won", money(out.Effect.Amount), true),
				field("💳 Total Money", money(out.Profile.Balance), true),
			)
		}
		embed := outcomeEmbed(title+" You lost.", "", out,
			field("💸 Lost", money(-out.Effect.Amount), true),
			field("💳 Total Money", money(out.Profile.Balance), true),
		)
		embed.Color = colorFailure
		return embed
	}
}

func (b *Bot) cmdGamble(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	amount, err := parseAmount(c.Args[0])
	if err != nil {
		return nil, err
	}
	return b.act(ctx, c, b.game.Gamble, game.ActionInput{Amount: amount}, stakeOutcome("🎲"))
}

func (b *Bot) cmdPremiumCasino(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	amount, err := parseAmount(c.Args[0])
	if err != nil {
		return nil, err
	}
	return b.act(ctx, c, b.game.PremiumCasino, game.ActionInput{Amount: amount}, stakeOutcome("🎰"))
}

func (b *Bot) cmdRob(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	target, err := parseMention(c.Args[0])
	if err != nil {
		return nil, err
	}
	return b.act(ctx, c, b.game.Rob, game.ActionInput{TargetID: target}, func(out game.Outcome) *discordgo.MessageEmbed {
		if out.Effect.Won {
			return outcomeEmbed("🔫 Robbery Successful!", "You robbed "+mention(target)+".", out,
				field("💰 Stolen", money(out.Effect.Amount), true),
				field("💳 Total Money", money(out.Profile.Balance), true),
			)
		}
		embed := outcomeEmbed("🚓 Robbery Failed!", mention(target)+" fought back and you paid a fine.", out,
			field("💸 Fine", money(-out.Effect.Amount), true),
			field("💳 Total Money", money(out.Profile.Balance), true),
		)
		embed.Color = colorFailure
		return embed
	})
}

func (b *Bot) cmdHeist(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.runHeist(ctx, c, b.game.Heist, "🏦")
}

func (b *Bot) cmdPremiumHeist(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.runHeist(ctx, c, b.game.PremiumHeist, "💎")
}

func (b *Bot) runHeist(ctx context.Context, c call, fn actionFunc, icon string) (*discordgo.MessageEmbed, error) {
	crew := make([]string, 0, len(c.Args))
	for _, arg := range c.Args {
		id, err := parseMention(arg)
		if err != nil {
			return nil, err
		}
		crew = append(crew, id)
	}
	return b.act(ctx, c, fn, game.ActionInput{Crew: crew}, func(out game.Outcome) *discordgo.MessageEmbed {
		members := append([]game.Profile{out.Profile}, out.Crew...)
		fields := make([]*discordgo.MessageEmbedField, 0, len(members))
		for i, m := range members {
			amount := out.Effect.Amount
			if i > 0 {
				amount = out.Effect.CrewAmounts[m.UserID]
			}
			label := "💰 Take"
			if amount < 0 {
				label, amount = "💸 Fine", -amount
			}
			fields = append(fields, field(label, fmt.Sprintf("%s %s", mention(m.UserID), money(amount)), true))
		}
		if out.Effect.Won {
			return outcomeEmbed(icon+" Heist Pulled Off!", fmt.Sprintf("A crew of %d cracked the vault.", len(members)), out, fields...)
		}
		embed := outcomeEmbed("🚨 Heist Busted!", "The alarm went off and everyone paid a fine.", out, fields...)
		embed.Color = colorFailure
		return embed
	})
}

func (b *Bot) cmdAchievements(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	id := c.UserID
	if len(c.Args) > 0 {
		target, err := parseMention(c.Args[0])
		if err != nil {
			return nil, err
		}
		id = target
	}
	out, err := b.game.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	return achievementsEmbed(out.Profile), nil
}

func (b *Bot) cmdShop(context.Context, call) (*discordgo.MessageEmbed, error) {
	embed := &discordgo.MessageEmbed{Title: "🛒 Shop", Color: colorInfo}
	for _, it := range game.Items() {
		embed.Fields = append(embed.Fields, field(fmt.Sprintf("%s (%s)", it.Name, it.ID), fmt.Sprintf("%s\n%s", money(it.Price), it.Description), true))
	}
	var plans []string
	for _, p := range game.PremiumPlans() {
		plans = append(plans, fmt.Sprintf("`%s` %s", p.ID, money(p.Price)))
	}
	embed.Fields = append(embed.Fields, field("👑 Premium plans", strings.Join(plans, "\n"), false))
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Use " + b.prefix + "buy <item> or " + b.prefix + "buypremium <plan>"}
	return embed, nil
}

func (b *Bot) cmdBuy(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.act(ctx, c, b.game.Buy, game.ActionInput{Item: c.Args[0]}, func(out game.Outcome) *discordgo.MessageEmbed {
		return outcomeEmbed("🛍️ Purchase Complete", "You bought a **"+out.Effect.Item+"**.", out,
			field("💸 Paid", money(-out.Effect.Amount), true),
			field("💳 Total Money", money(out.Profile.Balance), true),
		)
	})
}

func (b *Bot) cmdBuyPremium(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.act(ctx, c, b.game.BuyPremium, game.ActionInput{Plan: c.Args[0]}, func(out game.Outcome) *discordgo.MessageEmbed {
		embed := outcomeEmbed("👑 Welcome to Premium!", "", out,
			field("💸 Paid", money(-out.Effect.Amount), true),
			field("👑 Premium", premiumLabel(out.Profile, b.now()), true),
		)
		embed.Color = colorPremium
		return embed
	})
}

func (b *Bot) cmdPremium(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	out, err := b.game.Profile(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	benefits := strings.Join([]string{
		"• 3x work earnings (5x lifetime)",
		"• Half work and crime cooldowns",
		"• Premium daily, casino and gifts",
		"• Vault deposits, safe from robbery",
	}, "\n")
	return &discordgo.MessageEmbed{
		Title:  "👑 Premium",
		Color:  colorPremium,
		Fields: append([]*discordgo.MessageEmbedField{field("Status", premiumLabel(out.Profile, b.now()), false), field("Benefits", benefits, false)}, notices(out.Effect)...),
		Footer: &discordgo.MessageEmbedFooter{Text: "Use " + b.prefix + "buypremium <plan>"},
	}, nil
}

func (b *Bot) cmdGift(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	target, err := parseMention(c.Args[0])
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(c.Args[1])
	if err != nil {
		return nil, err
	}
	return b.act(ctx, c, b.game.Gift, game.ActionInput{TargetID: target, Amount: amount}, func(out game.Outcome) *discordgo.MessageEmbed {
		return outcomeEmbed("🎁 Gift Sent", fmt.Sprintf("You gave %s to %s.", money(amount), mention(target)), out,
			field("💳 Your Money", money(out.Profile.Balance), true),
		)
	})
}

func (b *Bot) cmdPremiumGift(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	target, err := parseMention(c.Args[0])
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(c.Args[1])
	if err != nil {
		return nil, err
	}
	in := game.ActionInput{TargetID: target, Amount: amount, Message: strings.Join(c.Args[2:], " ")}
	return b.act(ctx, c, b.game.PremiumGift, in, func(out game.Outcome) *discordgo.MessageEmbed {
		embed := outcomeEmbed("💝 Premium Gift", fmt.Sprintf("%s sent %s to %s!", mention(c.UserID), money(amount), mention(target)), out)
		if out.Effect.Message != "" {
			embed.Fields = append([]*discordgo.MessageEmbedField{field("💌 Message", out.Effect.Message, false)}, embed.Fields...)
		}
		embed.Color = colorPremium
		return embed
	})
}

func (b *Bot) cmdDeal(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	target, err := parseMention(c.Args[0])
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(c.Args[1])
	if err != nil {
		return nil, err
	}
	days, err := parseDays(c.Args[2])
	if err != nil {
		return nil, err
	}
	return b.act(ctx, c, b.game.Loan, game.ActionInput{TargetID: target, Amount: amount, Days: days}, func(out game.Outcome) *discordgo.MessageEmbed {
		embed := outcomeEmbed("🤝 Loan Issued", fmt.Sprintf("You lent %s to %s.", money(amount), mention(target)), out)
		if l := out.Effect.Loan; l != nil {
			embed.Fields = append(embed.Fields, field("📅 Due", l.MaturesAt.Format("January 2, 2006 15:04 MST"), true))
		}
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "If it isn't repaid by then, the borrower loses everything."}
		return embed
	})
}

func (b *Bot) cmdRepay(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.act(ctx, c, b.game.Repay, game.ActionInput{}, func(out game.Outcome) *discordgo.MessageEmbed {
		desc := "Loan repaid."
		if l := out.Effect.Loan; l != nil {
			desc = fmt.Sprintf("You repaid %s to %s.", money(l.Principal), mention(l.LenderID))
		}
		return outcomeEmbed("✅ Loan Repaid", desc, out, field("💳 Total Money", money(out.Profile.Balance), true))
	})
}

func (b *Bot) cmdLoans(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	view, err := b.game.Loans(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	borrowed := []string{"None"}
	if len(view.Borrowed) > 0 {
		borrowed = borrowed[:0]
		for _, l := range view.Borrowed {
			borrowed = append(borrowed, loanLine(l, "from "+mention(l.LenderID)))
		}
	}
	lent := []string{"None"}
	if len(view.Lent) > 0 {
		lent = lent[:0]
		for _, l := range view.Lent {
			lent = append(lent, loanLine(l, "to "+mention(l.BorrowerID)))
		}
	}
	return &discordgo.MessageEmbed{
		Title: "📜 Your Loans",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			field("Borrowed", strings.Join(borrowed, "\n"), false),
			field("Lent", strings.Join(lent, "\n"), false),
		},
	}, nil
}

func (b *Bot) cmdVault(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	if len(c.Args) == 0 {
		out, err := b.game.Profile(ctx, c.UserID)
		if err != nil {
			return nil, err
		}
		return &discordgo.MessageEmbed{
			Title:  "🏦 Vault",
			Color:  colorInfo,
			Fields: []*discordgo.MessageEmbedField{field("Vault", money(out.Profile.VaultBalance), true), field("Wallet", money(out.Profile.Balance), true)},
		}, nil
	}
	if len(c.Args) < 2 {
		return nil, errUsage
	}
	amount, err := parseAmount(c.Args[1])
	if err != nil {
		return nil, err
	}
	var fn actionFunc
	switch strings.ToLower(c.Args[0]) {
	case "deposit", "dep", "d":
		fn = b.game.VaultDeposit
	case "withdraw", "with", "w":
		fn = b.game.VaultWithdraw
	default:
		return nil, errUsage
	}
	return b.act(ctx, c, fn, game.ActionInput{Amount: amount}, func(out game.Outcome) *discordgo.MessageEmbed {
		return outcomeEmbed("🏦 Vault Updated", "", out,
			field("🏦 Vault", money(out.Profile.VaultBalance), true),
			field("💳 Wallet", money(out.Profile.Balance), true),
		)
	})
}

func (b *Bot) cmdLeaderboard(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	limit := 10
	if len(c.Args) > 0 {
		n, err := strconv.Atoi(c.Args[0])
		if err != nil {
			return nil, errUsage
		}
		limit = n
	}
	rows, err := b.game.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("**%d.** %s %s (%s, lvl %d)", r.Rank, mention(r.UserID), money(r.Balance), r.Job, r.Level))
	}
	desc := "Nobody has played yet."
	if len(lines) > 0 {
		desc = strings.Join(lines, "\n")
	}
	return &discordgo.MessageEmbed{Title: "🏆 Leaderboard", Description: desc, Color: colorPremium}, nil
}

func (b *Bot) cmdStocks(ctx context.Context, _ call) (*discordgo.MessageEmbed, error) {
	quotes, err := b.market.Quotes(ctx)
	if err != nil {
		return nil, err
	}
	embed := &discordgo.MessageEmbed{Title: "📈 Stock Market", Color: colorInfo}
	for _, q := range quotes {
		trend := "➖"
		if n := len(q.History); n >= 2 {
			switch prev := q.History[n-2].Price; {
			case q.Price > prev:
				trend = "🔺"
			case q.Price < prev:
				trend = "🔻"
			}
		}
		embed.Fields = append(embed.Fields, field(q.Symbol+" "+trend, fmt.Sprintf("%s\n%s", money(q.Price), q.Name), true))
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Use " + b.prefix + "invest <stock> <shares>"}
	return embed, nil
}

func (b *Bot) trade(ctx context.Context, c call, fn actionFunc, title string) (*discordgo.MessageEmbed, error) {
	shares, err := parseAmount(c.Args[1])
	if err != nil {
		return nil, err
	}
	in := game.ActionInput{Symbol: strings.ToUpper(c.Args[0]), Shares: shares}
	return b.act(ctx, c, fn, in, func(out game.Outcome) *discordgo.MessageEmbed {
		eff := out.Effect
		return outcomeEmbed(title, fmt.Sprintf("%d × %s @ %s", eff.Shares, eff.Symbol, money(eff.Price)), out,
			field("💱 Total", money(eff.Amount), true),
			field("💳 Total Money", money(out.Profile.Balance), true),
		)
	})
}

func (b *Bot) cmdInvest(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.trade(ctx, c, b.game.Invest, "📈 Shares Bought")
}

func (b *Bot) cmdSell(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	return b.trade(ctx, c, b.game.Sell, "📉 Shares Sold")
}

// adminInput reads an optional leading mention followed by the rest.
func adminInput(args []string) (string, []string) {
	if len(args) > 0 && isMention(args[0]) {
		id, _ := parseMention(args[0])
		return id, args[1:]
	}
	return "", args
}

func adminEmbed(title string) func(game.Outcome) *discordgo.MessageEmbed {
	return func(out game.Outcome) *discordgo.MessageEmbed {
		return &discordgo.MessageEmbed{
			Title:       title,
			Description: mention(out.Profile.UserID),
			Color:       colorWarn,
			Fields: []*discordgo.MessageEmbedField{
				field("💳 Money", money(out.Profile.Balance), true),
				field("👔 Job", string(out.Profile.Job), true),
			},
		}
	}
}

func (b *Bot) cmdAddMoney(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	target, rest := adminInput(c.Args)
	var amount int64
	if len(rest) > 0 {
		n, err := parseAmount(rest[0])
		if err != nil {
			return nil, err
		}
		amount = n
	}
	return b.act(ctx, c, b.game.AddMoney, game.ActionInput{TargetID: target, Amount: amount}, adminEmbed("🔧 Money Added"))
}

func (b *Bot) cmdSetMoney(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	target, rest := adminInput(c.Args)
	if target == "" || len(rest) == 0 {
		return nil, errUsage
	}
	amount, err := parseAmount(rest[0])
	if err != nil {
		return nil, err
	}
	return b.act(ctx, c, b.game.SetMoney, game.ActionInput{TargetID: target, Amount: amount}, adminEmbed("🔧 Money Set"))
}

func (b *Bot) cmdSetJob(ctx context.Context, c call) (*discordgo.MessageEmbed, error) {
	target, rest := adminInput(c.Args)
	if target == "" || len(rest) == 0 {
		return nil, errUsage
	}
	return b.act(ctx, c, b.game.SetJob, game.ActionInput{TargetID: target, Job: strings.Join(rest, " ")}, adminEmbed("🔧 Job Set"))
}
