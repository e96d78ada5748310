package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IlyasAtabaev731/jar-bank/internal/api"
	"github.com/IlyasAtabaev731/jar-bank/internal/config"
	"github.com/IlyasAtabaev731/jar-bank/internal/ledger"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/metrics"
	"github.com/IlyasAtabaev731/jar-bank/internal/lib/password"
	"github.com/IlyasAtabaev731/jar-bank/internal/rates"
	"github.com/IlyasAtabaev731/jar-bank/internal/storage/postgres"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
	)

	dbUrl := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Postgres.User,
		cfg.Postgres.Pass,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Db,
	)

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 30*time.Second)
	storage, err := postgres.New(connectCtx, dbUrl, postgres.Options{
		PoolSize:       cfg.Postgres.PoolSize,
		AcquireTimeout: cfg.Postgres.AcquireTimeout,
	}, log)
	cancelConnect()
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	m.RegisterPool(storage.PoolStats)

	rateCache := rates.NewCache(
		rates.NewFrankfurter(cfg.Rates.BaseURL, cfg.Rates.Timeout, log),
		cfg.Rates.TTL,
		log,
	)

	service := ledger.New(log, storage, password.NewBcrypt())

	apiServer := api.New(cfg, log, service, rateCache, m)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Error("Stopping server error", "error", err)
	}

	if err := storage.Stop(); err != nil {
		log.Error("Closing storage error", "error", err)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
