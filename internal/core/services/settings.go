package services

import (
	"time"

	"github.com/SscSPs/card_ledger/internal/platform/config"
	"github.com/shopspring/decimal"
)

// Settings holds the tunables shared by the ledger services.
type Settings struct {
	HomeCountry              string
	DefaultHoldExpiration    time.Duration
	FuelPreauthCeiling       decimal.Decimal
	FuelHoldExpiration       time.Duration
	DefaultForeignFeePercent decimal.Decimal
	HoldSweepLookback        time.Duration
	HoldSweepBatchSize       int
	HoldSweepConcurrency     int
	CorrectionDelay          time.Duration
	CorrectionBatchSize      int
	// CorrectionLease is how long a RUNNING job may go untouched before another run reclaims it.
	CorrectionLease time.Duration

	// Clock overrides time.Now, mostly for tests.
	Clock func() time.Time
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		HomeCountry:              "USA",
		DefaultHoldExpiration:    5 * 24 * time.Hour,
		FuelPreauthCeiling:       decimal.NewFromInt(100),
		FuelHoldExpiration:       72 * time.Hour,
		DefaultForeignFeePercent: decimal.NewFromInt(3),
		HoldSweepLookback:        30 * 24 * time.Hour,
		HoldSweepBatchSize:       500,
		HoldSweepConcurrency:     8,
		CorrectionDelay:          7 * 24 * time.Hour,
		CorrectionBatchSize:      100,
		CorrectionLease:          30 * time.Minute,
	}
}

// SettingsFromConfig maps the loaded configuration onto Settings.
func SettingsFromConfig(cfg config.LedgerConfig) Settings {
	return Settings{
		HomeCountry:              cfg.HomeCountry,
		DefaultHoldExpiration:    cfg.DefaultHoldExpiration,
		FuelPreauthCeiling:       cfg.FuelPreauthCeiling,
		FuelHoldExpiration:       cfg.FuelHoldExpiration,
		DefaultForeignFeePercent: cfg.DefaultForeignFeePercent,
		HoldSweepLookback:        cfg.HoldSweepLookback,
		HoldSweepBatchSize:       cfg.HoldSweepBatchSize,
		HoldSweepConcurrency:     cfg.HoldSweepConcurrency,
		CorrectionDelay:          cfg.CorrectionDelay,
		CorrectionBatchSize:      cfg.CorrectionBatchSize,
		CorrectionLease:          cfg.CorrectionLease,
	}
}
