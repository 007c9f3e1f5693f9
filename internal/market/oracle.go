// Package market is the price oracle behind invest and sell. Quotes live in
// the same kv store as profiles and are moved by Tick on a fixed cadence.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"hustle/internal/game"
	"hustle/internal/kv"
)

const (
	MinPrice = int64(1)
	MaxPrice = int64(1_000_000_000)

	quoteKeyPrefix = "stock_"
	stateKey       = "market_state"
	historyLimit   = 48
)

// ErrUnknownSymbol is returned for symbols that were never listed.
var ErrUnknownSymbol = game.ErrStockNotFound

type PricePoint struct {
	At    time.Time `json:"at"`
	Price int64     `json:"price"`
}

type Quote struct {
	Symbol    string       `json:"symbol"`
	Name      string       `json:"name"`
	Price     int64        `json:"price"`
	Anchor    int64        `json:"anchor"`
	UpdatedAt time.Time    `json:"updated_at"`
	History   []PricePoint `json:"history,omitempty"`
}

type state struct {
	Regime    regime    `json:"regime"`
	UpdatedAt time.Time `json:"updated_at"`
}

var defaultListings = []struct {
	Symbol string
	Name   string
	Price  int64
}{
	{"TECH", "Techtonic Systems", 250},
	{"FOOD", "Food Court Holdings", 90},
	{"AUTO", "Autobahn Motors", 400},
	{"GAME", "Gamebox Studios", 120},
	{"BANK", "Bank of Hustle", 600},
}

type Oracle struct {
	store      kv.Store
	log        *slog.Logger
	volatility string
	now        func() time.Time

	mu   sync.Mutex
	rand *mathrand.Rand
}

type Option func(*Oracle)

func WithSeed(seed int64) Option {
	return func(o *Oracle) { o.rand = mathrand.New(mathrand.NewSource(seed)) }
}

func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

func New(store kv.Store, logger *slog.Logger, volatility string, opts ...Option) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Oracle{
		store:      store,
		log:        logger,
		volatility: NormalizeVolatility(volatility),
		now:        time.Now,
		rand:       mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func quoteKey(symbol string) string { return quoteKeyPrefix + symbol }

// Seed lists the default symbols that are not already present.
func (o *Oracle) Seed(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	for _, l := range defaultListings {
		_, err := o.store.Get(ctx, quoteKey(l.Symbol))
		if err == nil {
			continue
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("seed %s: %w", l.Symbol, err)
		}
		q := Quote{Symbol: l.Symbol, Name: l.Name, Price: l.Price, Anchor: l.Price, UpdatedAt: now}
		q.History = []PricePoint{{At: now, Price: l.Price}}
		if err := o.putQuote(ctx, q); err != nil {
			return err
		}
		o.log.Info("listed stock", "symbol", l.Symbol, "price", l.Price)
	}
	return nil
}

// Quote returns the current quote for symbol.
func (o *Oracle) Quote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := game.ValidateSymbol(symbol); err != nil {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	raw, err := o.store.Get(ctx, quoteKey(symbol))
	if errors.Is(err, kv.ErrNotFound) {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("load quote: %w", err)
	}
	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return Quote{}, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	return q, nil
}

// Price implements the engine's price oracle.
func (o *Oracle) Price(ctx context.Context, symbol string) (int64, error) {
	q, err := o.Quote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}

// Quotes lists every symbol in alphabetical order.
func (o *Oracle) Quotes(ctx context.Context) ([]Quote, error) {
	entries, err := o.store.ScanPrefix(ctx, quoteKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan quotes: %w", err)
	}
	out := make([]Quote, 0, len(entries))
	for _, e := range entries {
		var q Quote
		if err := json.Unmarshal(e.Value, &q); err != nil {
			o.log.Warn("skipping undecodable quote", "key", e.Key, "err", err)
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (o *Oracle) nextFloat() float64 {
	return o.rand.Float64()
}

// Tick moves every price one step: an occasional regime switch, drift, noise,
// mean reversion toward a slowly wandering anchor, and rare shocks.
func (o *Oracle) Tick(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	params := volatilityParams(o.volatility)
	now := o.now()

	st, err := o.loadState(ctx)
	if err != nil {
		return err
	}
	if o.nextFloat() < params.RegimeSwitchProb {
		st.Regime = nextRegime(o.nextFloat)
	}
	st.UpdatedAt = now

	quotes, err := o.Quotes(ctx)
	if err != nil {
		return err
	}
	entries := make([]kv.Entry, 0, len(quotes)+1)
	for _, q := range quotes {
		q.Anchor = compound(q.Anchor, params.anchorReturn(st.Regime, o.nextFloat), params.MaxDropPerTick)
		q.Price = compound(q.Price, params.priceReturn(st.Regime, q, o.nextFloat), params.MaxDropPerTick)
		q.UpdatedAt = now
		q.History = append(q.History, PricePoint{At: now, Price: q.Price})
		if n := len(q.History); n > historyLimit {
			q.History = append([]PricePoint(nil), q.History[n-historyLimit:]...)
		}

		raw, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode quote %s: %w", q.Symbol, err)
		}
		entries = append(entries, kv.Entry{Key: quoteKey(q.Symbol), Value: raw})
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode market state: %w", err)
	}
	entries = append(entries, kv.Entry{Key: stateKey, Value: raw})

	if err := o.write(ctx, entries); err != nil {
		return err
	}
	o.log.Debug("market tick", "regime", st.Regime, "symbols", len(quotes))
	return nil
}

// Run ticks every interval until ctx is cancelled. Failed ticks are logged and
// retried on the next interval.
func (o *Oracle) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	o.log.Info("market ticker started", "tick_every", every.String(), "volatility", o.volatility)
	for {
		select {
		case <-ctx.Done():
			o.log.Info("market ticker shutdown")
			return nil
		case <-ticker.C:
			if err := o.Tick(ctx); err != nil {
				o.log.Error("market tick failed", "err", err)
			}
		}
	}
}

func (o *Oracle) loadState(ctx context.Context) (state, error) {
	raw, err := o.store.Get(ctx, stateKey)
	if errors.Is(err, kv.ErrNotFound) {
		return state{Regime: regimeNeutral}, nil
	}
	if err != nil {
		return state{}, fmt.Errorf("load market state: %w", err)
	}
	var st state
	if err := json.Unmarshal(raw, &st); err != nil || st.Regime == "" {
		return state{Regime: regimeNeutral}, nil
	}
	return st, nil
}

func (o *Oracle) putQuote(ctx context.Context, q Quote) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote %s: %w", q.Symbol, err)
	}
	if err := o.store.Set(ctx, quoteKey(q.Symbol), raw); err != nil {
		return fmt.Errorf("save quote %s: %w", q.Symbol, err)
	}
	return nil
}

func (o *Oracle) write(ctx context.Context, entries []kv.Entry) error {
	if b, ok := o.store.(kv.Batcher); ok {
		if err := b.SetMany(ctx, entries); err != nil {
			return fmt.Errorf("save tick: %w", err)
		}
		return nil
	}
	for _, e := range entries {
		if err := o.store.Set(ctx, e.Key, e.Value); err != nil {
			return fmt.Errorf("save tick: %w", err)
		}
	}
	return nil
}
