package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hustle/internal/game"
	"hustle/internal/market"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response. Denied actions fill Reason and, for
// cooldowns, RetryAfter.
type APIError struct {
	Status     int
	Message    string
	Reason     game.Reason
	RetryAfter time.Duration
	Outcome    *game.Outcome
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api status %d: %s (%s)", e.Status, e.Message, e.Reason)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// Denied reports whether err is a rule denial rather than a transport or
// server failure.
func Denied(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Reason != "" {
		return apiErr, true
	}
	return nil, false
}

// ActionRequest mirrors the body accepted by POST /v1/actions/{action}.
type ActionRequest struct {
	TargetID string   `json:"target_id,omitempty"`
	Amount   int64    `json:"amount,omitempty"`
	Days     int      `json:"days,omitempty"`
	Item     string   `json:"item,omitempty"`
	Plan     string   `json:"plan,omitempty"`
	Symbol   string   `json:"symbol,omitempty"`
	Shares   int64    `json:"shares,omitempty"`
	Message  string   `json:"message,omitempty"`
	Job      string   `json:"job,omitempty"`
	Crew     []string `json:"crew,omitempty"`
}

type ProfileView struct {
	Profile            game.Profile      `json:"profile"`
	Status             game.WealthStatus `json:"status"`
	Premium            game.PremiumKind  `json:"premium"`
	ExperienceRequired int64             `json:"experience_required"`
	Effect             game.Effect       `json:"effect"`
}

func (c *Client) Profile(ctx context.Context, accessToken, userID string) (ProfileView, error) {
	path := "/v1/profile"
	if userID != "" {
		path = "/v1/profiles/" + url.PathEscape(userID)
	}
	var out ProfileView
	err := c.jsonRequest(ctx, http.MethodGet, path, accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Action(ctx context.Context, accessToken, action string, in ActionRequest, idem string) (game.Outcome, error) {
	var out game.Outcome
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/actions/"+url.PathEscape(action), accessToken, in, &out, idem)
	return out, err
}

func (c *Client) Admin(ctx context.Context, accessToken, op string, in ActionRequest, idem string) (game.Outcome, error) {
	var out game.Outcome
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/"+url.PathEscape(op), accessToken, in, &out, idem)
	return out, err
}

func (c *Client) Loans(ctx context.Context, accessToken string) (game.LoanView, error) {
	var out game.LoanView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/loans", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]game.LeaderboardRow, error) {
	var out struct {
		Rows []game.LeaderboardRow `json:"rows"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/leaderboard?limit="+strconv.Itoa(limit), "", nil, &out, "")
	return out.Rows, err
}

func (c *Client) ListStocks(ctx context.Context) ([]market.Quote, error) {
	var out struct {
		Stocks []market.Quote `json:"stocks"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stocks", "", nil, &out, "")
	return out.Stocks, err
}

func (c *Client) StockDetail(ctx context.Context, symbol string) (market.Quote, error) {
	var out market.Quote
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stocks/"+url.PathEscape(symbol), "", nil, &out, "")
	return out, err
}

type ShopView struct {
	Items []game.Item        `json:"items"`
	Plans []game.PremiumPlan `json:"plans"`
}

func (c *Client) Shop(ctx context.Context) (ShopView, error) {
	var out ShopView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/shop", "", nil, &out, "")
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(status int, raw []byte) error {
	var body struct {
		Error             string        `json:"error"`
		Reason            game.Reason   `json:"reason"`
		RetryAfterSeconds int64         `json:"retry_after_seconds"`
		Outcome           *game.Outcome `json:"outcome"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	apiErr.Message = body.Error
	apiErr.Reason = body.Reason
	apiErr.RetryAfter = time.Duration(body.RetryAfterSeconds) * time.Second
	apiErr.Outcome = body.Outcome
	return apiErr
}
