package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	cl "hustle/internal/cli"
	"hustle/internal/game"
	"hustle/internal/market"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
	gold        = color.New(color.FgYellow)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func renderProfile(v cl.ProfileView) {
	p := v.Profile
	accent.Printf("\n== PROFILE %s ==\n", p.UserID)
	fmt.Printf("Money:       %s\n", formatMoney(p.Balance))
	fmt.Printf("Vault:       %s\n", formatMoney(p.VaultBalance))
	fmt.Printf("Job:         %s\n", p.Job)
	fmt.Printf("Level:       %d (%d/%d XP)\n", p.Level, p.Experience, v.ExperienceRequired)
	fmt.Printf("Status:      %s\n", v.Status)
	fmt.Printf("Premium:     %s\n", premiumText(v))
	if len(p.Inventory) > 0 {
		fmt.Printf("Inventory:   %s\n", strings.Join(p.Inventory, ", "))
	}
	if len(p.Achievements) > 0 {
		names := make([]string, len(p.Achievements))
		for i, id := range p.Achievements {
			names[i] = game.AchievementByID(id).Name
		}
		fmt.Printf("Achievements: %d/%d %s\n", len(names), len(game.Achievements()), strings.Join(names, ", "))
	}
	if len(p.Portfolio) > 0 {
		fmt.Println()
		accent.Println("Portfolio")
		symbols := make([]string, 0, len(p.Portfolio))
		for sym := range p.Portfolio {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		fmt.Printf("%-8s %10s %12s\n", "SYMBOL", "SHARES", "AVG PRICE")
		for _, sym := range symbols {
			h := p.Portfolio[sym]
			fmt.Printf("%-8s %10d %12s\n", sym, h.Shares, formatMoney(h.AvgPrice))
		}
	}
	renderNotices(v.Effect)
	fmt.Println()
}

func premiumText(v cl.ProfileView) string {
	switch v.Premium {
	case game.PremiumLifetime:
		return gold.Sprint("lifetime")
	case game.PremiumTimed:
		if exp := v.Profile.PremiumExpiresAt; exp != nil {
			return gold.Sprintf("until %s", exp.Local().Format("2006-01-02 15:04"))
		}
		return gold.Sprint("active")
	default:
		return "none"
	}
}

func renderNotices(eff game.Effect) {
	if eff.PremiumExpired {
		printWarn("Your premium membership has expired.")
	}
	if eff.LoanDefaulted {
		printError("Your loan matured unpaid and your balance was seized.")
	}
	if eff.LeveledUp {
		printSuccess(fmt.Sprintf("Level up! You reached level %d.", eff.NewLevel))
	}
	if eff.Promoted {
		printSuccess(fmt.Sprintf("Promoted to %s!", eff.NewJob))
	}
	for _, a := range eff.Achievements {
		printSuccess("Achievement unlocked: " + game.AchievementByID(a).Name)
	}
}

func renderOutcome(action string, out game.Outcome) {
	eff := out.Effect
	switch {
	case eff.Symbol != "":
		fmt.Printf("%s %d x %s @ %s\n", strings.ToUpper(action), eff.Shares, eff.Symbol, formatMoney(eff.Price))
	case eff.Loan != nil:
		fmt.Printf("Loan %s: %s between %s and %s, due %s\n", eff.Loan.Status, formatMoney(eff.Loan.Principal),
			eff.Loan.LenderID, eff.Loan.BorrowerID, eff.Loan.MaturesAt.Local().Format("2006-01-02 15:04"))
	case eff.Item != "":
		fmt.Printf("Bought %s\n", eff.Item)
	}
	if eff.Won {
		printSuccess("You won!")
	}
	fmt.Printf("%-10s %s\n", action, colorizeMoney(eff.Amount))
	for _, m := range out.Crew {
		fmt.Printf("  %-8s %s\n", truncate(m.UserID, 8), colorizeMoney(eff.CrewAmounts[m.UserID]))
	}
	if eff.XP > 0 {
		fmt.Printf("%-10s +%d\n", "xp", eff.XP)
	}
	if eff.Message != "" {
		fmt.Printf("%-10s %q\n", "message", eff.Message)
	}
	fmt.Printf("%-10s %s\n", "balance", formatMoney(out.Profile.Balance))
	renderNotices(eff)
}

func renderDenied(err *cl.APIError) {
	msg := err.Message
	if err.RetryAfter > 0 {
		msg += fmt.Sprintf(" (try again in %s)", err.RetryAfter.Round(time.Second))
	}
	printWarn(msg)
	if err.Outcome != nil {
		renderNotices(err.Outcome.Effect)
	}
}

func renderLoans(view game.LoanView) {
	accent.Println("\n== LOANS ==")
	section := func(title string, loans []game.Loan, party func(game.Loan) string) {
		accent.Println(title)
		if len(loans) == 0 {
			printInfo("None.")
			return
		}
		fmt.Printf("%-18s %12s %-17s %-10s\n", "WITH", "PRINCIPAL", "DUE", "STATUS")
		for _, l := range loans {
			fmt.Printf("%-18s %12s %-17s %-10s\n", truncate(party(l), 18), formatMoney(l.Principal),
				l.MaturesAt.Local().Format("2006-01-02 15:04"), l.Status)
		}
	}
	section("Borrowed", view.Borrowed, func(l game.Loan) string { return l.LenderID })
	section("Lent", view.Lent, func(l game.Loan) string { return l.BorrowerID })
	fmt.Println()
}

func renderLeaderboard(rows []game.LeaderboardRow) {
	accent.Println("\n== LEADERBOARD ==")
	if len(rows) == 0 {
		printInfo("No leaderboard rows yet.")
		return
	}
	fmt.Printf("%-6s %-20s %14s %-15s %5s %-16s\n", "RANK", "PLAYER", "BALANCE", "JOB", "LVL", "STATUS")
	for _, row := range rows {
		fmt.Printf("%-6d %-20s %14s %-15s %5d %-16s\n",
			row.Rank,
			truncate(row.UserID, 20),
			formatMoney(row.Balance),
			row.Job,
			row.Level,
			row.Status,
		)
	}
	fmt.Println()
}

func renderStocksList(quotes []market.Quote) {
	accent.Println("\n== STOCK MARKET ==")
	if len(quotes) == 0 {
		printInfo("No stocks found.")
		return
	}
	fmt.Printf("%-8s %-24s %12s %12s\n", "SYMBOL", "NAME", "PRICE", "VS ANCHOR")
	for _, q := range quotes {
		fmt.Printf("%-8s %-24s %12s %12s\n",
			q.Symbol,
			truncate(q.Name, 24),
			formatMoney(q.Price),
			colorizeMoney(q.Price-q.Anchor),
		)
	}
	fmt.Println()
}

func renderStockDetail(q market.Quote) {
	accent.Printf("\n== %s (%s) ==\n", q.Symbol, q.Name)
	fmt.Printf("Current Price: %s\n", formatMoney(q.Price))
	fmt.Printf("Anchor:        %s\n", formatMoney(q.Anchor))
	if n := len(q.History); n > 1 {
		fmt.Printf("Trend (recent): %s\n", colorizeMoney(q.History[n-1].Price-q.History[0].Price))
		fmt.Println()
		accent.Println("Recent Ticks")
		fmt.Printf("%-20s %12s\n", "TIME", "PRICE")
		for i := n - 1; i >= 0 && i >= n-8; i-- {
			point := q.History[i]
			fmt.Printf("%-20s %12s\n", point.At.Local().Format("2006-01-02 15:04"), formatMoney(point.Price))
		}
	}
	fmt.Println()
}

func renderShop(shop cl.ShopView) {
	accent.Println("\n== SHOP ==")
	fmt.Printf("%-8s %-10s %12s  %s\n", "ID", "NAME", "PRICE", "EFFECT")
	for _, it := range shop.Items {
		fmt.Printf("%-8s %-10s %12s  %s\n", it.ID, it.Name, formatMoney(it.Price), it.Description)
	}
	fmt.Println()
	accent.Println("Premium plans")
	for _, p := range shop.Plans {
		length := "forever"
		if p.Duration > 0 {
			length = fmt.Sprintf("%d days", int(p.Duration.Hours()/24))
		}
		fmt.Printf("%-8s %12s  %s\n", p.ID, formatMoney(p.Price), length)
	}
	fmt.Println()
}

func colorizeMoney(v int64) string {
	text := signedMoney(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatMoney(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + comma(v)
}

func signedMoney(v int64) string {
	if v > 0 {
		return "+" + formatMoney(v)
	}
	return formatMoney(v)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
