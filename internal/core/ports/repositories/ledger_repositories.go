package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AdjustmentRepositoryFacade defines persistence operations for the append-only adjustment log.
type AdjustmentRepositoryFacade interface {
	// SaveAdjustment appends an adjustment. Adjustments are never updated.
	SaveAdjustment(ctx context.Context, adjustment domain.Adjustment) error

	FindAdjustmentByID(ctx context.Context, adjustmentID string) (*domain.Adjustment, error)

	// FindAdjustmentsByAccountID lists the adjustments of an account oldest first.
	FindAdjustmentsByAccountID(ctx context.Context, accountID string) ([]domain.Adjustment, error)

	// SumNetworkAdjustments sums signed NETWORK_CAPTURE and NETWORK_REFUND amounts of the owner in the window.
	SumNetworkAdjustments(ctx context.Context, query domain.SpendUsageQuery) (decimal.Decimal, error)
}

// HoldReader defines read operations for holds.
type HoldReader interface {
	FindHoldByID(ctx context.Context, holdID string) (*domain.Hold, error)

	// FindHoldsByIDs returns the holds found among ids; missing ids are skipped.
	FindHoldsByIDs(ctx context.Context, holdIDs []string) ([]domain.Hold, error)

	// FindPlacedHoldsByNetworkMessageIDs returns PLACED holds created by any of the messages.
	FindPlacedHoldsByNetworkMessageIDs(ctx context.Context, messageIDs []string) ([]domain.Hold, error)

	// SumPlacedHoldsForOwner sums PLACED holds of a card or allocation created inside the window.
	SumPlacedHoldsForOwner(ctx context.Context, query domain.SpendUsageQuery) (decimal.Decimal, error)

	// FindExpiredPlacedHolds lists PLACED holds whose expiration lies in [from, to], oldest first.
	FindExpiredPlacedHolds(ctx context.Context, from, to time.Time, limit int) ([]domain.Hold, error)
}

// HoldWriter defines write operations for holds.
type HoldWriter interface {
	SaveHold(ctx context.Context, hold domain.Hold) error

	// TransitionPlacedHold moves a PLACED hold to a terminal status. It reports false when the
	// hold was no longer PLACED, leaving it untouched.
	TransitionPlacedHold(ctx context.Context, holdID string, to domain.HoldStatus, now time.Time) (bool, error)
}

// HoldRepositoryFacade combines all hold-related repository interfaces
type HoldRepositoryFacade interface {
	HoldReader
	HoldWriter
}
