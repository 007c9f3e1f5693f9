package discord

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"hustle/internal/game"
	"hustle/internal/kv/memkv"
	"hustle/internal/market"
)

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memkv.New()
	oracle := market.New(store, logger, "mor", market.WithSeed(3))
	if err := oracle.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := game.NewService(store, logger,
		game.WithOracle(oracle),
		game.WithRoller(game.NewRoller(9)),
		game.WithAdmins("100"),
	)
	return newBot(svc, oracle, logger, "!")
}

func embedText(e *discordgo.MessageEmbed) string {
	var b strings.Builder
	b.WriteString(e.Title + "\n" + e.Description + "\n")
	for _, f := range e.Fields {
		b.WriteString(f.Name + ": " + f.Value + "\n")
	}
	return b.String()
}

func TestHandleIgnoresNonCommands(t *testing.T) {
	b := newTestBot(t)
	for _, content := range []string{"hello", "", "!", "  ?work"} {
		if e := b.handle(context.Background(), "1", "m", content); e != nil {
			t.Fatalf("content %q produced %q", content, e.Title)
		}
	}
}

func TestWorkThenCooldownEmbed(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	e := b.handle(ctx, "1", "m1", "!WORK")
	if e == nil || e.Color != colorSuccess || !strings.Contains(e.Title, "Work") {
		t.Fatalf("unexpected work embed %+v", e)
	}

	e = b.handle(ctx, "1", "m2", "!work")
	if e.Color != colorFailure {
		t.Fatalf("expected denial, got %q", e.Title)
	}
	if !strings.Contains(e.Description, "Try again in") {
		t.Fatalf("cooldown text missing: %q", e.Description)
	}
}

func TestRedeliveredMessageIsNotReapplied(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	b.handle(ctx, "100", "admin-1", "!addmoney <@2> 5000")
	e := b.handle(ctx, "100", "admin-1", "!addmoney <@2> 5000")
	if !strings.Contains(e.Description, reasonText[game.ReasonDuplicateCommand]) {
		t.Fatalf("expected duplicate denial, got %q", embedText(e))
	}
	out, err := b.game.Profile(ctx, "2")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if out.Profile.Balance != 5000 {
		t.Fatalf("balance = %d want 5000", out.Profile.Balance)
	}
}

func TestUsageAndSuggestions(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	e := b.handle(ctx, "1", "m", "!gift <@2>")
	if !strings.Contains(e.Title, "gift @user <amount>") {
		t.Fatalf("expected gift usage, got %q", e.Title)
	}
	e = b.handle(ctx, "1", "m", "!gift bob 10")
	if !strings.Contains(e.Title, "Command Help") {
		t.Fatalf("bad mention should show usage, got %q", e.Title)
	}
	e = b.handle(ctx, "1", "m", "!wrok")
	if !strings.Contains(embedText(e), "`!work`") {
		t.Fatalf("expected !work suggestion, got %q", embedText(e))
	}
	e = b.handle(ctx, "1", "m", "!zzzzzzzz")
	if len(e.Fields) != 0 || e.Color != colorFailure {
		t.Fatalf("expected plain not-found, got %q", embedText(e))
	}
}

func TestDeniedGiftAndOwnerOnly(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	e := b.handle(ctx, "1", "m1", "!gift <@!2> 1,000")
	if !strings.Contains(e.Description, reasonText[game.ReasonInsufficientFunds]) {
		t.Fatalf("unexpected gift reply %q", embedText(e))
	}
	e = b.handle(ctx, "1", "m2", "!setmoney <@2> 10")
	if !strings.Contains(e.Description, reasonText[game.ReasonForbidden]) {
		t.Fatalf("unexpected setmoney reply %q", embedText(e))
	}
}

func TestProfileAndStocks(t *testing.T) {
	b := newTestBot(t)
	b.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	e := b.handle(ctx, "1", "m", "!profile")
	text := embedText(e)
	if !strings.Contains(text, "<@1>") || !strings.Contains(text, string(game.JobHomeless)) {
		t.Fatalf("unexpected profile %q", text)
	}
	e = b.handle(ctx, "1", "m", "!stocks")
	if len(e.Fields) != 5 {
		t.Fatalf("stocks fields = %d", len(e.Fields))
	}
	e = b.handle(ctx, "1", "m", "!invest NOPE 1")
	if !strings.Contains(e.Description, reasonText[game.ReasonUnknownSymbol]) {
		t.Fatalf("unexpected invest reply %q", embedText(e))
	}
}

func TestHeistCommands(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	e := b.handle(ctx, "1", "m1", "!heist <@2> <@!3>")
	text := embedText(e)
	if !strings.Contains(e.Title, "Heist") || !strings.Contains(text, "<@2>") || !strings.Contains(text, "<@3>") {
		t.Fatalf("unexpected heist embed %q", text)
	}
	e = b.handle(ctx, "2", "m2", "!heist <@1>")
	if !strings.Contains(e.Description, reasonText[game.ReasonCooldown]) {
		t.Fatalf("expected crew cooldown, got %q", embedText(e))
	}
	e = b.handle(ctx, "4", "m3", "!heist <@4>")
	if !strings.Contains(e.Description, reasonText[game.ReasonSelfTarget]) {
		t.Fatalf("expected self target, got %q", embedText(e))
	}
	e = b.handle(ctx, "4", "m4", "!heist <@5> <@6> <@7> <@8> <@9>")
	if !strings.Contains(e.Description, reasonText[game.ReasonCrewSize]) {
		t.Fatalf("expected crew size, got %q", embedText(e))
	}
	e = b.handle(ctx, "4", "m5", "!premiumheist <@5>")
	if !strings.Contains(e.Description, reasonText[game.ReasonNotPremium]) {
		t.Fatalf("expected premium denial, got %q", embedText(e))
	}
	e = b.handle(ctx, "4", "m6", "!heist bob")
	if !strings.Contains(e.Title, "Command Help") {
		t.Fatalf("bad mention should show usage, got %q", e.Title)
	}
}

func TestAchievementsCommand(t *testing.T) {
	b := newTestBot(t)
	ctx := context.Background()

	e := b.handle(ctx, "1", "m1", "!achievements")
	want := fmt.Sprintf("0/%d unlocked", len(game.Achievements()))
	if len(e.Fields) != 1 || e.Fields[0].Name != want {
		t.Fatalf("unexpected achievements embed %q", embedText(e))
	}

	b.handle(ctx, "1", "m2", "!work")
	e = b.handle(ctx, "1", "m3", "!ach <@1>")
	if !strings.Contains(e.Fields[0].Value, "✅ **First Paycheck**") {
		t.Fatalf("first paycheck not unlocked: %q", embedText(e))
	}
	if strings.Contains(e.Fields[0].Name, "0/") {
		t.Fatalf("count not updated: %q", e.Fields[0].Name)
	}
}

func TestParseHelpers(t *testing.T) {
	name, args, ok := parseInvocation("  !Gift <@1>  500 ", "!")
	if !ok || name != "gift" || len(args) != 2 {
		t.Fatalf("parseInvocation = %q %v %v", name, args, ok)
	}

	mentions := map[string]string{"<@123>": "123", "<@!456>": "456", "789": "789"}
	for in, want := range mentions {
		got, err := parseMention(in)
		if err != nil || got != want {
			t.Fatalf("parseMention(%q) = %q, %v", in, got, err)
		}
	}
	for _, bad := range []string{"bob", "<@>", "<@12a>", ""} {
		if _, err := parseMention(bad); err == nil {
			t.Fatalf("parseMention(%q) should fail", bad)
		}
	}

	amounts := map[string]int64{"1,000": 1000, "$250": 250, "-5": -5, "1_000_000": 1_000_000}
	for in, want := range amounts {
		if got, err := parseAmount(in); err != nil || got != want {
			t.Fatalf("parseAmount(%q) = %d, %v", in, got, err)
		}
	}
	if _, err := parseAmount("lots"); err == nil {
		t.Fatalf("parseAmount should reject words")
	}
}

func TestFormatting(t *testing.T) {
	moneyCases := map[int64]string{0: "$0", 999: "$999", 1000: "$1,000", 1234567: "$1,234,567", -1500: "-$1,500"}
	for in, want := range moneyCases {
		if got := money(in); got != want {
			t.Fatalf("money(%d) = %q want %q", in, got, want)
		}
	}

	durations := []struct {
		in   time.Duration
		want string
	}{
		{0, "now"},
		{500 * time.Millisecond, "1s"},
		{45 * time.Second, "45s"},
		{4*time.Minute + 30*time.Second, "4m 30s"},
		{5 * time.Minute, "5m"},
		{time.Hour, "1h"},
		{23*time.Hour + 59*time.Minute + 10*time.Second, "23h 59m"},
	}
	for _, tc := range durations {
		if got := formatDuration(tc.in); got != tc.want {
			t.Fatalf("formatDuration(%s) = %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestSuggest(t *testing.T) {
	names := commandNames()
	tests := []struct {
		in   string
		want string
	}{
		{"wrok", "work"},
		{"steal", "rob"},
		{"stock", "stocks"},
		{"lea", "leaderboard"},
		{"premuim", "premium"},
		{"ldrbrd", "leaderboard"},
		{"workk", "work"},
		{"heistt", "heist"},
		{"bank", "heist"},
		{"achievment", "achievements"},
	}
	for _, tc := range tests {
		got := suggest(tc.in, names)
		found := false
		for _, s := range got {
			found = found || s == tc.want
		}
		if !found {
			t.Fatalf("suggest(%q) = %v, missing %q", tc.in, got, tc.want)
		}
		if len(got) > maxSuggestions {
			t.Fatalf("suggest(%q) returned %d", tc.in, len(got))
		}
	}
	if got := suggest("zzzzzzzz", names); len(got) != 0 {
		t.Fatalf("expected no suggestions, got %v", got)
	}
}
