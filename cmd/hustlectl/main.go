package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hustle/internal/auth"
	cl "hustle/internal/cli"
	"hustle/internal/config"
	"hustle/internal/game"
	"hustle/internal/syncq"
)

const requestTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadCLIFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "hustlectl",
		Short:        "Hustle economy client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newLoginCmd(cfg, &apiBase),
		newLogoutCmd(),
		newProfileCmd(&apiBase),
		newLoansCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newStocksCmd(&apiBase),
		newShopCmd(&apiBase),
		newSyncCmd(&apiBase),
		newAdminCmd(&apiBase),
	)
	root.AddCommand(actionCommands(&apiBase)...)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func loadSession() (cl.Session, error) {
	store, err := cl.DefaultSessionStore()
	if err != nil {
		return cl.Session{}, err
	}
	sess, err := store.Load()
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

// newLoginCmd mints a token locally with the shared signing secret. It is an
// operator tool: anyone holding the secret can act as any user.
func newLoginCmd(cfg config.CLIConfig, apiBase *string) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "login [user-id]",
		Short: "Mint a token for a chat user id and save the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(cfg.JWTSecret) < 32 {
				return errors.New("HUSTLE_JWT_SECRET must be set (at least 32 bytes)")
			}
			userID := ""
			if len(args) > 0 {
				userID = strings.TrimSpace(args[0])
			}
			if userID == "" {
				v, err := promptRequired("User id")
				if err != nil {
					return err
				}
				userID = v
			}
			tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
			token, err := tokens.Generate(userID, admin)
			if err != nil {
				return err
			}
			store, err := cl.DefaultSessionStore()
			if err != nil {
				return err
			}
			if err := store.Save(cl.Session{AccessToken: token, UserID: userID, Admin: admin, BaseURL: *apiBase}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Logged in as %s (token valid for %s).", userID, cfg.TokenTTL))
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "include the admin claim")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cl.DefaultSessionStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newProfileCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "profile [user-id]",
		Short:   "Show your profile or another user's",
		Aliases: []string{"me"},
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			other := ""
			if len(args) > 0 {
				other = args[0]
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			view, err := newClient(apiBase).Profile(ctx, sess.AccessToken, other)
			if err != nil {
				return err
			}
			renderProfile(view)
			return nil
		},
	}
}

func newLoansCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "loans",
		Short: "Loans you borrowed and lent",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			view, err := newClient(apiBase).Loans(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderLoans(view)
			return nil
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "leaderboard",
		Short:   "Richest players",
		Aliases: []string{"lb"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			rows, err := newClient(apiBase).Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			renderLeaderboard(rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "rows to show (1-100)")
	return cmd
}

func newStocksCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "stocks [SYMBOL]",
		Short:   "List stocks or inspect one",
		Aliases: []string{"stock"},
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			client := newClient(apiBase)
			if len(args) == 0 {
				quotes, err := client.ListStocks(ctx)
				if err != nil {
					return err
				}
				renderStocksList(quotes)
				return nil
			}
			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := game.ValidateSymbol(symbol); err != nil {
				return err
			}
			q, err := client.StockDetail(ctx, symbol)
			if err != nil {
				return err
			}
			renderStockDetail(q)
			return nil
		},
	}
}

func newShopCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shop",
		Short: "Items and premium plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			shop, err := newClient(apiBase).Shop(ctx)
			if err != nil {
				return err
			}
			renderShop(shop)
			return nil
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay commands queued while the API was unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadSession()
			if err != nil {
				return err
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			settled, err := syncq.Drain(ctx, func(ctx context.Context, q syncq.Command) syncq.Result {
				var req cl.ActionRequest
				if len(q.Body) > 0 {
					if err := json.Unmarshal(q.Body, &req); err != nil {
						printError(fmt.Sprintf("Dropping unreadable %s: %v", q.Action, err))
						return syncq.Done
					}
				}
				send := client.Action
				if q.Admin {
					send = client.Admin
				}
				out, err := send(ctx, sess.AccessToken, q.Action, req, q.IdempotencyKey)
				if err != nil {
					if apiErr, ok := cl.Denied(err); ok {
						printWarn(fmt.Sprintf("%s was refused: %s", q.Action, apiErr.Message))
						return syncq.Done
					}
					var structured *cl.APIError
					if errors.As(err, &structured) {
						printError(fmt.Sprintf("%s failed: %v", q.Action, err))
						return syncq.Done
					}
					printError(fmt.Sprintf("Sync stopped at %s: %v", q.Action, err))
					return syncq.Retry
				}
				renderOutcome(q.Action, out)
				return syncq.Done
			})
			if err != nil {
				return err
			}
			left, err := syncq.Load()
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", settled, len(left)))
			return nil
		},
	}
}

// actionDef describes one engine action exposed as a subcommand.
type actionDef struct {
	Use     string
	Short   string
	Action  string
	Admin   bool
	MinArgs int
	MaxArgs int
	Build   func(args []string) (cl.ActionRequest, error)
}

func noArgs([]string) (cl.ActionRequest, error) { return cl.ActionRequest{}, nil }

func parseInt(s, label string) (int64, error) {
	v, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", label, s)
	}
	return v, nil
}

func amountAt(args []string, idx int) (int64, error) {
	return parseInt(args[idx], "amount")
}

func actionDefs() []actionDef {
	return []actionDef{
		{Use: "work", Short: "Earn money from your job", Action: "work", Build: noArgs},
		{Use: "crime", Short: "Risky money with a chance of a fine", Action: "crime", Build: noArgs},
		{Use: "daily", Short: "Claim your daily bonus", Action: "daily", Build: noArgs},
		{Use: "premium-daily", Short: "Claim the premium daily bonus", Action: "premium-daily", Build: noArgs},
		{Use: "repay", Short: "Repay your open loan", Action: "repay", Build: noArgs},
		{Use: "gamble <amount>", Short: "Double or nothing", Action: "gamble", MinArgs: 1, MaxArgs: 1, Build: func(a []string) (cl.ActionRequest, error) {
			n, err := amountAt(a, 0)
			return cl.ActionRequest{Amount: n}, err
		}},
		{Use: "casino <amount>", Short: "Premium high-stakes table", Action: "casino", MinArgs: 1, MaxArgs: 1, Build: func(a []string) (cl.ActionRequest, error) {
			n, err := amountAt(a, 0)
			return cl.ActionRequest{Amount: n}, err
		}},
		{Use: "rob <user-id>", Short: "Try to rob another player", Action: "rob", MinArgs: 1, MaxArgs: 1, Build: func(a []string) (cl.ActionRequest, error) {
			return cl.ActionRequest{TargetID: a[0]}, nil
		}},
		{Use: "heist <user-id>...", Short: "Rob the bank with up to 4 partners", Action: "heist", MinArgs: 1, MaxArgs: game.MaxHeistCrew, Build: crewArgs},
		{Use: "premium-heist <user-id>...", Short: "Premium heist: bigger take, better odds", Action: "premium-heist", MinArgs: 1, MaxArgs: game.MaxHeistCrew, Build: crewArgs},
		{Use: "gift <user-id> <amount> [message]", Short: "Gift money (a message makes it a premium gift)", Action: "gift", MinArgs: 2, MaxArgs: -1, Build: func(a []string) (cl.ActionRequest, error) {
			n, err := amountAt(a, 1)
			return cl.ActionRequest{TargetID: a[0], Amount: n, Message: strings.Join(a[2:], " ")}, err
		}},
		{Use: "loan <user-id> <amount> <days>", Short: "Lend money to another player", Action: "loan", MinArgs: 3, MaxArgs: 3, Build: func(a []string) (cl.ActionRequest, error) {
			n, err := amountAt(a, 1)
			if err != nil {
				return cl.ActionRequest{}, err
			}
			days, err := parseInt(a[2], "days")
			return cl.ActionRequest{TargetID: a[0], Amount: n, Days: int(days)}, err
		}},
		{Use: "buy <item>", Short: "Buy a shop item", Action: "buy", MinArgs: 1, MaxArgs: 1, Build: func(a []string) (cl.ActionRequest, error) {
			return cl.ActionRequest{Item: a[0]}, nil
		}},
		{Use: "premium <plan>", Short: "Buy premium: week, month or lifetime", Action: "premium", MinArgs: 1, MaxArgs: 1, Build: func(a []string) (cl.ActionRequest, error) {
			return cl.ActionRequest{Plan: a[0]}, nil
		}},
		{Use: "deposit <amount>", Short: "Move money into your vault (premium)", Action: "vault-deposit", MinArgs: 1, MaxArgs: 1, Build: func(a []string) (cl.ActionRequest, error) {
			n, err := amountAt(a, 0)
			return cl.ActionRequest{Amount: n}, err
		}},
		{Use: "withdraw <amount>", Short: "Move money out of your vault", Action: "vault-withdraw", MinArgs: 1, MaxArgs: 1, Build: func(a []string) (cl.ActionRequest, error) {
			n, err := amountAt(a, 0)
			return cl.ActionRequest{Amount: n}, err
		}},
		{Use: "invest <SYMBOL> <shares>", Short: "Buy shares", Action: "invest", MinArgs: 2, MaxArgs: 2, Build: tradeArgs},
		{Use: "sell <SYMBOL> <shares>", Short: "Sell shares", Action: "sell", MinArgs: 2, MaxArgs: 2, Build: tradeArgs},
	}
}

func crewArgs(a []string) (cl.ActionRequest, error) {
	return cl.ActionRequest{Crew: append([]string(nil), a...)}, nil
}

func tradeArgs(a []string) (cl.ActionRequest, error) {
	symbol := strings.ToUpper(strings.TrimSpace(a[0]))
	if err := game.ValidateSymbol(symbol); err != nil {
		return cl.ActionRequest{}, err
	}
	shares, err := parseInt(a[1], "shares")
	return cl.ActionRequest{Symbol: symbol, Shares: shares}, err
}

func actionCommands(apiBase *string) []*cobra.Command {
	defs := actionDefs()
	out := make([]*cobra.Command, 0, len(defs))
	for _, def := range defs {
		out = append(out, newActionCmd(apiBase, def))
	}
	return out
}

func argsRule(def actionDef) cobra.PositionalArgs {
	if def.MaxArgs < 0 {
		return cobra.MinimumNArgs(def.MinArgs)
	}
	return cobra.RangeArgs(def.MinArgs, def.MaxArgs)
}

func newActionCmd(apiBase *string, def actionDef) *cobra.Command {
	return &cobra.Command{
		Use:   def.Use,
		Short: def.Short,
		Args:  argsRule(def),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := def.Build(args)
			if err != nil {
				return err
			}
			action := def.Action
			if action == "gift" && req.Message != "" {
				action = "premium-gift"
			}
			return runAction(cmd.Context(), apiBase, action, def.Admin, req)
		},
	}
}

func newAdminCmd(apiBase *string) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Owner overrides (needs an admin session)",
	}
	defs := []actionDef{
		{Use: "addmoney [user-id] [amount]", Short: "Add money (default 1,000,000)", Action: "addmoney", Admin: true, MaxArgs: 2, Build: func(a []string) (cl.ActionRequest, error) {
			var req cl.ActionRequest
			if len(a) > 0 {
				req.TargetID = a[0]
			}
			if len(a) > 1 {
				n, err := amountAt(a, 1)
				if err != nil {
					return req, err
				}
				req.Amount = n
			}
			return req, nil
		}},
		{Use: "setmoney <user-id> <amount>", Short: "Set an exact balance", Action: "setmoney", Admin: true, MinArgs: 2, MaxArgs: 2, Build: func(a []string) (cl.ActionRequest, error) {
			n, err := amountAt(a, 1)
			return cl.ActionRequest{TargetID: a[0], Amount: n}, err
		}},
		{Use: "setjob <user-id> <job>", Short: "Set a job, including demotions", Action: "setjob", Admin: true, MinArgs: 2, MaxArgs: -1, Build: func(a []string) (cl.ActionRequest, error) {
			return cl.ActionRequest{TargetID: a[0], Job: strings.Join(a[1:], " ")}, nil
		}},
	}
	for _, def := range defs {
		admin.AddCommand(newActionCmd(apiBase, def))
	}
	return admin
}

// runAction sends one action. When the API cannot be reached the command is
// queued with its idempotency key for `hustlectl sync`.
func runAction(ctx context.Context, apiBase *string, action string, admin bool, req cl.ActionRequest) error {
	sess, err := loadSession()
	if err != nil {
		return err
	}
	client := newClient(apiBase)
	idem := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	send := client.Action
	if admin {
		send = client.Admin
	}
	out, err := send(ctx, sess.AccessToken, action, req, idem)
	if err == nil {
		renderOutcome(action, out)
		return nil
	}
	if apiErr, ok := cl.Denied(err); ok {
		renderDenied(apiErr)
		return nil
	}
	return queueOnNetworkError(err, action, admin, req, idem)
}

func queueOnNetworkError(err error, action string, admin bool, req cl.ActionRequest, idem string) error {
	var apiErr *cl.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	body, merr := json.Marshal(req)
	if merr != nil {
		return err
	}
	if qerr := syncq.Push(syncq.Command{Action: action, Admin: admin, Body: body, IdempotencyKey: idem, QueuedAt: time.Now()}); qerr != nil {
		return fmt.Errorf("%w (queueing also failed: %v)", err, qerr)
	}
	printWarn(fmt.Sprintf("API unreachable, %s queued. Run `hustlectl sync` later.", action))
	return nil
}
