// Package config loads per-binary settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type StoreConfig struct {
	Backend     string `env:"HUSTLE_STORE" envDefault:"sqlite"`
	SQLitePath  string `env:"HUSTLE_SQLITE_PATH" envDefault:"hustle.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	PGMaxConns  int32  `env:"HUSTLE_PG_MAX_CONNS" envDefault:"10"`
}

type LogConfig struct {
	Level         string `env:"HUSTLE_LOG_LEVEL" envDefault:"info"`
	Format        string `env:"HUSTLE_LOG_FORMAT" envDefault:"json"`
	IncludeCaller bool   `env:"HUSTLE_LOG_CALLER"`
}

type MarketConfig struct {
	TickEvery  time.Duration `env:"HUSTLE_MARKET_TICK_EVERY" envDefault:"5m"`
	Volatility string        `env:"HUSTLE_MARKET_VOLATILITY"`
	SeedStocks bool          `env:"HUSTLE_STARTUP_SEED_STOCKS" envDefault:"true"`
}

type TelemetryConfig struct {
	Enabled  bool   `env:"HUSTLE_OTEL_ENABLED" envDefault:"true"`
	Endpoint string `env:"HUSTLE_OTEL_ENDPOINT"`
}

// HTTPConfig holds the JSON API listener settings shared by hustle-api and a
// bot that serves the API in-process.
type HTTPConfig struct {
	Addr           string        `env:"HUSTLE_API_ADDR" envDefault:":8080"`
	JWTSecret      string        `env:"HUSTLE_JWT_SECRET"`
	JWTIssuer      string        `env:"HUSTLE_JWT_ISSUER" envDefault:"hustle"`
	TokenTTL       time.Duration `env:"HUSTLE_TOKEN_TTL" envDefault:"24h"`
	RequestTimeout time.Duration `env:"HUSTLE_API_REQUEST_TIMEOUT" envDefault:"60s"`
}

type BotConfig struct {
	Token     string   `env:"DISCORD_TOKEN"`
	Prefix    string   `env:"HUSTLE_PREFIX" envDefault:"!"`
	OwnerIDs  []string `env:"HUSTLE_OWNER_IDS" envSeparator:","`
	RunTicker bool     `env:"HUSTLE_BOT_RUN_TICKER" envDefault:"true"`
	// ServeAPI mounts the JSON API on the bot's engine so Discord and
	// hustlectl traffic share one lock table.
	ServeAPI bool `env:"HUSTLE_BOT_SERVE_API"`

	HTTP      HTTPConfig
	Store     StoreConfig
	Market    MarketConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type APIConfig struct {
	HTTPConfig
	OwnerIDs []string `env:"HUSTLE_OWNER_IDS" envSeparator:","`

	Store     StoreConfig
	Market    MarketConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type WorkerConfig struct {
	RunOnce bool `env:"HUSTLE_WORKER_RUN_ONCE"`

	Store     StoreConfig
	Market    MarketConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type CLIConfig struct {
	APIBaseURL string        `env:"HUSTLECTL_API_BASE_URL" envDefault:"http://localhost:8080"`
	JWTSecret  string        `env:"HUSTLE_JWT_SECRET"`
	JWTIssuer  string        `env:"HUSTLE_JWT_ISSUER" envDefault:"hustle"`
	TokenTTL   time.Duration `env:"HUSTLE_TOKEN_TTL" envDefault:"24h"`
}

func parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadBotFromEnv() (BotConfig, error) {
	var cfg BotConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.OwnerIDs = cleanIDs(cfg.OwnerIDs)
	cfg.Market.Volatility = volatilityOrDefault(cfg.Market.Volatility)
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = "!"
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.ServeAPI {
		if err := cfg.HTTP.normalize(); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Store.validate()
}

func LoadAPIFromEnv() (APIConfig, error) {
	var cfg APIConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.OwnerIDs = cleanIDs(cfg.OwnerIDs)
	cfg.Market.Volatility = volatilityOrDefault(cfg.Market.Volatility)
	if err := cfg.HTTPConfig.normalize(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Store.validate()
}

// normalize applies PORT, fills a zero timeout and checks the signing secret.
func (c *HTTPConfig) normalize() error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		c.Addr = port
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("HUSTLE_JWT_SECRET must be at least 32 bytes")
	}
	return nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.Market.Volatility = volatilityOrDefault(cfg.Market.Volatility)
	if cfg.Market.TickEvery <= 0 {
		return cfg, fmt.Errorf("HUSTLE_MARKET_TICK_EVERY must be positive")
	}
	return cfg, cfg.Store.validate()
}

func LoadCLIFromEnv() (CLIConfig, error) {
	var cfg CLIConfig
	if err := parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg, nil
}

func (c *StoreConfig) validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case "memory", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown HUSTLE_STORE %q", c.Backend)
	}
	if c.Backend == "sqlite" && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("HUSTLE_SQLITE_PATH is required for the sqlite store")
	}
	return nil
}

// volatilityOrDefault prefers an explicit setting, then the short VOLATILITY
// variable, then "mor".
func volatilityOrDefault(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(os.Getenv("VOLATILITY")))
	}
	switch v {
	case "calm", "mor", "wild":
		return v
	default:
		return "mor"
	}
}

func cleanIDs(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
