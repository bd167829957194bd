package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int32(20), cfg.DBMaxConns)
	assert.Equal(t, "postgres", cfg.LockBackend)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Empty(t, cfg.CORSAllowedOrigins)

	assert.Equal(t, "USA", cfg.Ledger.HomeCountry)
	assert.Equal(t, 120*time.Hour, cfg.Ledger.DefaultHoldExpiration)
	assert.True(t, cfg.Ledger.FuelPreauthCeiling.Equal(decimal.NewFromInt(100)))
	assert.True(t, cfg.Ledger.DefaultForeignFeePercent.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, 168*time.Hour, cfg.Ledger.CorrectionDelay)
	assert.Equal(t, 30*time.Minute, cfg.Ledger.CorrectionLease)
	assert.Zero(t, cfg.Ledger.HoldSweepInterval)
}

func TestLoadConfig_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("LOCK_BACKEND", "memory")
	t.Setenv("FUEL_PREAUTH_CEILING", "150.50")
	t.Setenv("HOLD_SWEEP_INTERVAL", "1m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ops.example.com, ,https://admin.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.LockBackend)
	assert.True(t, cfg.Ledger.FuelPreauthCeiling.Equal(decimal.RequireFromString("150.5")))
	assert.Equal(t, time.Minute, cfg.Ledger.HoldSweepInterval)
	assert.Equal(t, []string{"https://ops.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"LOCK_TIMEOUT":                "soon",
		"DEFAULT_HOLD_EXPIRATION":     "five days",
		"DEFAULT_FOREIGN_FEE_PERCENT": "three",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			t.Setenv(key, value)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
