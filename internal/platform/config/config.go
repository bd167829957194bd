package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool
	DBMaxConns    int32
	RunMigrations bool
	MigrationsDir string
	JWTSecret     string
	LogLevel      string

	// Browser origins allowed on the administrative API; empty disables CORS
	CORSAllowedOrigins []string

	// Network webhook ingestion
	WebhookSecret    string
	WebhookRateLimit string // ulule limiter format, e.g. "200-S"

	// Notification sink
	PosthogAPIKey   string
	PosthogEndpoint string

	// Locking
	LockBackend string // "memory" or "postgres"
	LockTimeout time.Duration

	Ledger LedgerConfig
}

// LedgerConfig holds the tunables of the authorization and consistency engine.
type LedgerConfig struct {
	HomeCountry              string
	DefaultHoldExpiration    time.Duration
	FuelPreauthCeiling       decimal.Decimal
	FuelHoldExpiration       time.Duration
	DefaultForeignFeePercent decimal.Decimal
	HoldSweepLookback        time.Duration
	HoldSweepBatchSize       int
	HoldSweepConcurrency     int
	HoldSweepInterval        time.Duration // 0 disables the in-process schedule
	CorrectionDelay          time.Duration
	CorrectionBatchSize      int
	CorrectionLease          time.Duration
	CorrectionInterval       time.Duration // 0 disables the in-process schedule
	AdjustmentQueueSize      int
	AdjustmentWorkers        int
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("DB_MAX_CONNS", 20)
	viper.SetDefault("RUN_MIGRATIONS", true)
	viper.SetDefault("MIGRATIONS_DIR", "migrations")
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("WEBHOOK_SECRET", "")
	viper.SetDefault("WEBHOOK_RATE_LIMIT", "200-S")
	viper.SetDefault("POSTHOG_API_KEY", "")
	viper.SetDefault("POSTHOG_ENDPOINT", "https://eu.i.posthog.com")
	viper.SetDefault("LOCK_BACKEND", "postgres")
	viper.SetDefault("LOCK_TIMEOUT", "5s")

	viper.SetDefault("HOME_COUNTRY", "USA")
	viper.SetDefault("DEFAULT_HOLD_EXPIRATION", "120h")
	viper.SetDefault("FUEL_PREAUTH_CEILING", "100")
	viper.SetDefault("FUEL_HOLD_EXPIRATION", "72h")
	viper.SetDefault("DEFAULT_FOREIGN_FEE_PERCENT", "3")
	viper.SetDefault("HOLD_SWEEP_LOOKBACK", "720h")
	viper.SetDefault("HOLD_SWEEP_BATCH_SIZE", 500)
	viper.SetDefault("HOLD_SWEEP_CONCURRENCY", 8)
	viper.SetDefault("HOLD_SWEEP_INTERVAL", "0s")
	viper.SetDefault("CORRECTION_DELAY", "168h")
	viper.SetDefault("CORRECTION_BATCH_SIZE", 100)
	viper.SetDefault("CORRECTION_INTERVAL", "0s")
	viper.SetDefault("CORRECTION_LEASE", "30m")
	viper.SetDefault("ADJUSTMENT_QUEUE_SIZE", 1024)
	viper.SetDefault("ADJUSTMENT_WORKERS", 2)

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "a-very-secret-key-should-be-longer-and-random" // !! CHANGE IN PRODUCTION !!
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")
	cfg.DBMaxConns = viper.GetInt32("DB_MAX_CONNS")
	cfg.RunMigrations = viper.GetBool("RUN_MIGRATIONS")
	cfg.MigrationsDir = viper.GetString("MIGRATIONS_DIR")
	cfg.LogLevel = viper.GetString("LOG_LEVEL")
	cfg.CORSAllowedOrigins = splitList(viper.GetString("CORS_ALLOWED_ORIGINS"))
	cfg.WebhookSecret = viper.GetString("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" && cfg.IsProduction {
		log.Println("Warning: WEBHOOK_SECRET not set. Network webhooks will not be verified.")
	}
	cfg.WebhookRateLimit = viper.GetString("WEBHOOK_RATE_LIMIT")
	cfg.PosthogAPIKey = viper.GetString("POSTHOG_API_KEY")
	cfg.PosthogEndpoint = viper.GetString("POSTHOG_ENDPOINT")
	cfg.LockBackend = viper.GetString("LOCK_BACKEND")

	var err error
	if cfg.LockTimeout, err = durationSetting("LOCK_TIMEOUT"); err != nil {
		return nil, err
	}

	ledger := LedgerConfig{
		HomeCountry:          viper.GetString("HOME_COUNTRY"),
		HoldSweepBatchSize:   viper.GetInt("HOLD_SWEEP_BATCH_SIZE"),
		HoldSweepConcurrency: viper.GetInt("HOLD_SWEEP_CONCURRENCY"),
		CorrectionBatchSize:  viper.GetInt("CORRECTION_BATCH_SIZE"),
		AdjustmentQueueSize:  viper.GetInt("ADJUSTMENT_QUEUE_SIZE"),
		AdjustmentWorkers:    viper.GetInt("ADJUSTMENT_WORKERS"),
	}
	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"DEFAULT_HOLD_EXPIRATION", &ledger.DefaultHoldExpiration},
		{"FUEL_HOLD_EXPIRATION", &ledger.FuelHoldExpiration},
		{"HOLD_SWEEP_LOOKBACK", &ledger.HoldSweepLookback},
		{"HOLD_SWEEP_INTERVAL", &ledger.HoldSweepInterval},
		{"CORRECTION_DELAY", &ledger.CorrectionDelay},
		{"CORRECTION_INTERVAL", &ledger.CorrectionInterval},
		{"CORRECTION_LEASE", &ledger.CorrectionLease},
	}
	for _, d := range durations {
		if *d.target, err = durationSetting(d.key); err != nil {
			return nil, err
		}
	}
	if ledger.FuelPreauthCeiling, err = decimalSetting("FUEL_PREAUTH_CEILING"); err != nil {
		return nil, err
	}
	if ledger.DefaultForeignFeePercent, err = decimalSetting("DEFAULT_FOREIGN_FEE_PERCENT"); err != nil {
		return nil, err
	}
	cfg.Ledger = ledger

	return cfg, nil
}

func durationSetting(key string) (time.Duration, error) {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s (%q): %w", key, raw, err)
	}
	return d, nil
}

func decimalSetting(key string) (decimal.Decimal, error) {
	raw := viper.GetString(key)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid value for %s (%q): %w", key, raw, err)
	}
	return d, nil
}

// splitList parses a comma separated setting, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
