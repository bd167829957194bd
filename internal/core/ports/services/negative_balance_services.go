package services

import (
	"context"
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

// NegativeBalanceSvc keeps allocation balances of a business non-negative.
type NegativeBalanceSvc interface {
	AdjustmentListener

	// CorrectNegativeBalances moves funds from healthy allocations into negative ones.
	CorrectNegativeBalances(ctx context.Context, businessID string) (*domain.CorrectionResult, error)

	// RunDueCorrections claims and runs every due correction job.
	RunDueCorrections(ctx context.Context, now time.Time) (*domain.CorrectionRunSummary, error)
}
