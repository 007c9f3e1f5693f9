package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hustle/internal/auth"
	"hustle/internal/config"
	"hustle/internal/game"
	"hustle/internal/market"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Admin  bool
}

type actionFunc func(context.Context, game.ActionInput) (game.Outcome, error)

type Server struct {
	cfg     config.HTTPConfig
	log     *slog.Logger
	tokens  *auth.TokenManager
	game    *game.Service
	market  *market.Oracle
	mux     *chi.Mux
	actions map[string]actionFunc
}

func New(cfg config.HTTPConfig, logger *slog.Logger, tokens *auth.TokenManager, gameSvc *game.Service, oracle *market.Oracle) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		tokens: tokens,
		game:   gameSvc,
		market: oracle,
		mux:    chi.NewRouter(),
	}
	s.actions = map[string]actionFunc{
		"work":           gameSvc.Work,
		"crime":          gameSvc.Crime,
		"daily":          gameSvc.Daily,
		"premium-daily":  gameSvc.PremiumDaily,
		"gamble":         gameSvc.Gamble,
		"casino":         gameSvc.PremiumCasino,
		"rob":            gameSvc.Rob,
		"gift":           gameSvc.Gift,
		"premium-gift":   gameSvc.PremiumGift,
		"loan":           gameSvc.Loan,
		"repay":          gameSvc.Repay,
		"buy":            gameSvc.Buy,
		"premium":        gameSvc.BuyPremium,
		"invest":         gameSvc.Invest,
		"sell":           gameSvc.Sell,
		"vault-deposit":  gameSvc.VaultDeposit,
		"vault-withdraw": gameSvc.VaultWithdraw,
		"heist":          gameSvc.Heist,
		"premium-heist":  gameSvc.PremiumHeist,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on cfg.Addr until ctx is cancelled, then drains in-flight
// requests for up to 15 seconds.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("hustle api listening", "addr", s.cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	return nil
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/shop", s.handleShop)
		r.Get("/achievements", s.handleAchievements)
		r.Get("/stocks", s.handleStocksList)
		r.Get("/stocks/{symbol}", s.handleStockDetail)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/profile", s.handleProfile)
			r.Get("/profiles/{id}", s.handleProfileByID)
			r.Get("/loans", s.handleLoans)
			r.Post("/actions/{action}", s.handleAction)

			r.Group(func(r chi.Router) {
				r.Use(s.adminMiddleware)
				r.Post("/admin/addmoney", s.handleAdmin(s.game.AddMoney))
				r.Post("/admin/setmoney", s.handleAdmin(s.game.SetMoney))
				r.Post("/admin/setjob", s.handleAdmin(s.game.SetJob))
			})
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: claims.Subject,
			Admin:  claims.Admin,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminMiddleware requires the admin claim. The engine still checks the
// configured owner list, so a leaked admin token for another id is useless.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromContext(r.Context())
		if err != nil || !user.Admin {
			writeError(w, http.StatusForbidden, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

type actionRequest struct {
	TargetID string   `json:"target_id"`
	Amount   int64    `json:"amount"`
	Days     int      `json:"days"`
	Item     string   `json:"item"`
	Plan     string   `json:"plan"`
	Symbol   string   `json:"symbol"`
	Shares   int64    `json:"shares"`
	Message  string   `json:"message"`
	Job      string   `json:"job"`
	Crew     []string `json:"crew"`
}

func (in actionRequest) toInput(userID, commandKey string) game.ActionInput {
	return game.ActionInput{
		UserID:     userID,
		TargetID:   strings.TrimSpace(in.TargetID),
		Amount:     in.Amount,
		Days:       in.Days,
		Item:       in.Item,
		Plan:       in.Plan,
		Symbol:     in.Symbol,
		Shares:     in.Shares,
		Message:    in.Message,
		Job:        in.Job,
		Crew:       in.Crew,
		CommandKey: commandKey,
	}
}

// readAction decodes an optional JSON body. An empty body is a zero request.
func readAction(r *http.Request) (actionRequest, error) {
	var in actionRequest
	if r.ContentLength == 0 {
		return in, nil
	}
	if err := decodeJSON(r, &in); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	name := chi.URLParam(r, "action")
	fn, ok := s.actions[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown action %q", name))
		return
	}
	in, err := readAction(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := fn(r.Context(), in.toInput(user.UserID, idempotencyKey(r)))
	if err != nil {
		s.log.Error("action failed", "action", name, "user_id", user.UserID, "err", err)
		writeDomainError(w, err)
		return
	}
	writeOutcome(w, out)
}

func (s *Server) handleAdmin(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		in, err := readAction(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out, err := fn(r.Context(), in.toInput(user.UserID, idempotencyKey(r)))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeOutcome(w, out)
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	s.writeProfile(w, r, user.UserID)
}

func (s *Server) handleProfileByID(w http.ResponseWriter, r *http.Request) {
	s.writeProfile(w, r, chi.URLParam(r, "id"))
}

func (s *Server) writeProfile(w http.ResponseWriter, r *http.Request, userID string) {
	out, err := s.game.Profile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":             out.Profile,
		"status":              out.Profile.Status(),
		"premium":             game.PremiumKindOf(out.Profile, time.Now()),
		"experience_required": out.Profile.ExperienceRequired(),
		"effect":              out.Effect,
	})
}

func (s *Server) handleLoans(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	view, err := s.game.Loans(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = n
	}
	rows, err := s.game.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleAchievements(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"achievements": game.Achievements()})
}

func (s *Server) handleShop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"items": game.Items(),
		"plans": game.PremiumPlans(),
	})
}

func (s *Server) handleStocksList(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.market.Quotes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for i := range quotes {
		quotes[i].History = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"stocks": quotes})
}

func (s *Server) handleStockDetail(w http.ResponseWriter, r *http.Request) {
	q, err := s.market.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

var reasonStatus = map[game.Reason]int{
	game.ReasonCooldown:          http.StatusTooManyRequests,
	game.ReasonInsufficientFunds: http.StatusBadRequest,
	game.ReasonInvalidAmount:     http.StatusBadRequest,
	game.ReasonTargetTooPoor:     http.StatusBadRequest,
	game.ReasonCapExceeded:       http.StatusBadRequest,
	game.ReasonSelfTarget:        http.StatusBadRequest,
	game.ReasonNotPremium:        http.StatusPaymentRequired,
	game.ReasonAlreadyOwned:      http.StatusConflict,
	game.ReasonAlreadyPremium:    http.StatusConflict,
	game.ReasonLoanOpen:          http.StatusConflict,
	game.ReasonDuplicateCommand:  http.StatusConflict,
	game.ReasonUnknownItem:       http.StatusNotFound,
	game.ReasonUnknownSymbol:     http.StatusNotFound,
	game.ReasonUnknownJob:        http.StatusNotFound,
	game.ReasonCrewSize:          http.StatusBadRequest,
	game.ReasonNoLoan:            http.StatusNotFound,
	game.ReasonForbidden:         http.StatusForbidden,
}

// writeOutcome sends applied outcomes as 200 and denials with a status per
// reason. Cooldowns carry a Retry-After header in whole seconds.
func writeOutcome(w http.ResponseWriter, out game.Outcome) {
	if out.Success {
		writeJSON(w, http.StatusOK, out)
		return
	}
	status, ok := reasonStatus[out.Reason]
	if !ok {
		status = http.StatusBadRequest
	}
	body := map[string]any{
		"error":   out.Reason.Err().Error(),
		"reason":  out.Reason,
		"outcome": out,
	}
	if out.RetryAfter > 0 {
		secs := int64(math.Ceil(out.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		body["retry_after_seconds"] = secs
	}
	writeJSON(w, status, body)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrStockNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrInvariant):
		writeError(w, http.StatusInternalServerError, "internal error")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, try again")
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
