package services

import (
	"context"
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/SscSPs/card_ledger/internal/core/ports/repositories"
)

// HoldSvc defines hold operations that lock the account and run their own transaction.
type HoldSvc interface {
	Place(ctx context.Context, req domain.PlaceHoldRequest) (*domain.Hold, error)
	// Release reports whether this call moved the hold out of PLACED.
	Release(ctx context.Context, holdID string) (bool, error)
	// Expire reports whether this call moved the hold out of PLACED.
	Expire(ctx context.Context, holdID string) (bool, error)
	Replace(ctx context.Context, oldHoldID string, newAmount domain.Amount, newExpiration time.Time) (*domain.Hold, error)
}

// HoldTxSvc defines hold operations composed into a caller's transaction.
type HoldTxSvc interface {
	PlaceTx(ctx context.Context, tx repositories.Tx, req domain.PlaceHoldRequest) (*domain.Hold, error)
	ReleaseTx(ctx context.Context, tx repositories.Tx, holdID string) (bool, error)
	ExpireTx(ctx context.Context, tx repositories.Tx, holdID string) (bool, error)
	ReplaceTx(ctx context.Context, tx repositories.Tx, old domain.Hold, newAmount domain.Amount, newExpiration time.Time, networkMessageID string) (*domain.Hold, error)
}

// HoldSvcFacade combines all hold service interfaces
type HoldSvcFacade interface {
	HoldSvc
	HoldTxSvc
}

// HoldSweeperSvc expires past-due holds in batches.
type HoldSweeperSvc interface {
	SweepExpiredHolds(ctx context.Context, now time.Time) (*domain.SweepSummary, error)
}
