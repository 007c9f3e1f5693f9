package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hustle/internal/config"
	"hustle/internal/kv/backend"
	"hustle/internal/logging"
	"hustle/internal/market"
	"hustle/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found; relying on existing environment")
	}
	if err := run(); err != nil {
		slog.Error("hustle worker failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(ctx, "hustle-worker", cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	store, closeStore, err := backend.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	oracle := market.New(store, logger, cfg.Market.Volatility)
	if cfg.Market.SeedStocks {
		if err := oracle.Seed(ctx); err != nil {
			return err
		}
	}

	if cfg.RunOnce {
		if err := oracle.Tick(ctx); err != nil {
			return err
		}
		logger.Info("worker run-once completed")
		return nil
	}
	return oracle.Run(ctx, cfg.Market.TickEvery)
}
