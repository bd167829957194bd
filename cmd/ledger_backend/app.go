package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/SscSPs/card_ledger/internal/adapters/database/memory"
	"github.com/SscSPs/card_ledger/internal/adapters/database/pgsql"
	"github.com/SscSPs/card_ledger/internal/adapters/notify"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/core/services"
	"github.com/SscSPs/card_ledger/internal/platform/config"
	"github.com/SscSPs/card_ledger/internal/platform/lock"
	"github.com/SscSPs/card_ledger/pkg/database"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app holds the wired services and the resources that must be released on exit.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	posthog    *notify.PosthogClientWrapper
	dispatcher *services.AdjustmentDispatcher
	services   *portssvc.ServiceContainer
}

// newLogger builds the JSON logger used by every command.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// buildApp connects storage and wires the service container. Without a database
// URL everything runs on the in-memory store, which suits local experiments only.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var store portsrepo.Store
	var locker portssvc.Locker
	if cfg.DatabaseURL == "" {
		logger.Warn("PGSQL_URL not set, using the in-memory store. Data is lost on exit.")
		store = memory.NewStore()
		locker = lock.NewKeyedMutex(cfg.LockTimeout)
	} else {
		pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.EnableDBCheck)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		a.pool = pool
		store = pgsql.NewStore(pool)

		switch cfg.LockBackend {
		case "memory":
			locker = lock.NewKeyedMutex(cfg.LockTimeout)
		case "postgres", "":
			locker = pgsql.NewAdvisoryLocker(pool, cfg.LockTimeout, logger)
		default:
			a.close()
			return nil, fmt.Errorf("unknown LOCK_BACKEND %q", cfg.LockBackend)
		}
	}
	logger.Info("Storage initialized",
		slog.Bool("postgres", a.pool != nil),
		slog.String("lock_backend", fmt.Sprintf("%T", locker)))

	a.posthog = notify.InitializePosthogClient(cfg.PosthogAPIKey, cfg.PosthogEndpoint, logger)
	notifier := notify.New(a.posthog, logger)

	a.dispatcher = services.NewAdjustmentDispatcher(cfg.Ledger.AdjustmentQueueSize, cfg.Ledger.AdjustmentWorkers, logger)
	a.services = services.NewServiceContainer(store, locker, notifier, a.dispatcher, services.SettingsFromConfig(cfg.Ledger))
	return a, nil
}

// close drains the dispatcher before closing the pool it writes through.
func (a *app) close() {
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	a.posthog.Close()
	database.ClosePgxPool(a.pool)
}
