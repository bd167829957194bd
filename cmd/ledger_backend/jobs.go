package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/SscSPs/card_ledger/internal/platform/config"
	"github.com/SscSPs/card_ledger/pkg/database"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// runWithApp loads the configuration, wires the services and runs fn once.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) (any, error)) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := fn(cmd.Context(), a)
	if err != nil {
		return err
	}
	return printYAML(cmd.OutOrStdout(), result)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return enc.Close()
}

// parseAsOf reads the --as-of flag; empty means now.
func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q, expected RFC3339: %w", raw, err)
	}
	return t, nil
}

func sweepHoldsCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "sweep-holds",
		Short: "Expire every PLACED hold past its expiration date",
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.services.HoldSweeper.SweepExpiredHolds(ctx, now)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "sweep as of this RFC3339 time instead of now")
	return cmd
}

func correctBalancesCmd() *cobra.Command {
	var asOf, businessID string
	cmd := &cobra.Command{
		Use:   "correct-balances",
		Short: "Run due negative balance corrections, or correct one business immediately",
		Long: `Without --business, claims every scheduled correction job that is due and runs it.
With --business, runs the corrector for that business right away.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseAsOf(asOf)
			if err != nil {
				return err
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) (any, error) {
				if businessID != "" {
					a.logger.Info("Correcting business", slog.String("business_id", businessID))
					return a.services.NegativeBalance.CorrectNegativeBalances(ctx, businessID)
				}
				return a.services.NegativeBalance.RunDueCorrections(ctx, now)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "treat jobs due at this RFC3339 time as due")
	cmd.Flags().StringVar(&businessID, "business", "", "correct this business immediately")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	for _, direction := range []database.MigrationDirection{database.MigrateUp, database.MigrateDown} {
		cmd.AddCommand(&cobra.Command{
			Use:   string(direction),
			Short: fmt.Sprintf("Migrate the schema %s", direction),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.LoadConfig()
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				if cfg.DatabaseURL == "" {
					return fmt.Errorf("PGSQL_URL is required to run migrations")
				}
				return database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir, direction, newLogger(cfg.LogLevel))
			},
		})
	}
	return cmd
}
