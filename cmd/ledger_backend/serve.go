package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SscSPs/card_ledger/internal/handlers"
	"github.com/SscSPs/card_ledger/internal/middleware"
	"github.com/SscSPs/card_ledger/internal/platform/config"
	"github.com/SscSPs/card_ledger/pkg/database"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the network webhook and the background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := newLogger(cfg.LogLevel)

			if cfg.RunMigrations && cfg.DatabaseURL != "" {
				logger.Info("Running database migrations...")
				if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir, database.MigrateUp, logger); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	// The listener outlives request contexts; it stops when the queue is drained.
	a.dispatcher.Start(context.WithoutCancel(ctx), a.services.NegativeBalance)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	if err := r.SetTrustedProxies(nil); err != nil {
		return fmt.Errorf("failed to set trusted proxies: %w", err)
	}
	if err := handlers.RegisterRoutes(r, cfg, a.services, a.posthog); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if interval := cfg.Ledger.HoldSweepInterval; interval > 0 {
		g.Go(func() error {
			runEvery(gctx, logger.With(slog.String("job", "hold-expiry")), interval, func(ctx context.Context) error {
				_, err := a.services.HoldSweeper.SweepExpiredHolds(ctx, time.Now().UTC())
				return err
			})
			return nil
		})
	}
	if interval := cfg.Ledger.CorrectionInterval; interval > 0 {
		g.Go(func() error {
			runEvery(gctx, logger.With(slog.String("job", "negative-balance")), interval, func(ctx context.Context) error {
				_, err := a.services.NegativeBalance.RunDueCorrections(ctx, time.Now().UTC())
				return err
			})
			return nil
		})
	}

	return g.Wait()
}

// runEvery calls job on every tick until ctx ends. Failures are logged and the
// next tick retries.
func runEvery(ctx context.Context, logger *slog.Logger, interval time.Duration, job func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("Scheduled job started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job(ctx); err != nil {
				logger.Error("Scheduled job failed", slog.String("error", err.Error()))
			}
		}
	}
}
