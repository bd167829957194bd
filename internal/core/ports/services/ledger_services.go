package services

import (
	"context"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/SscSPs/card_ledger/internal/core/ports/repositories"
)

// LedgerReaderSvc defines balance read operations.
type LedgerReaderSvc interface {
	// LedgerBalance returns the stored ledger balance of an account.
	LedgerBalance(ctx context.Context, accountID string) (domain.Amount, error)

	// AvailableBalance returns ledger balance plus the sum of PLACED holds, read in one transaction.
	AvailableBalance(ctx context.Context, accountID string) (domain.Amount, error)

	// BusinessBalances returns ledger and available balances of every account of a business.
	BusinessBalances(ctx context.Context, businessID string) ([]domain.AccountBalance, error)

	// ListActivities returns one page of an account's visible activity feed, newest first.
	// pageToken is empty for the first page.
	ListActivities(ctx context.Context, accountID string, limit int, pageToken string) (*domain.ActivityPage, error)
}

// LedgerWriterSvc defines ledger write operations that run in their own transaction.
type LedgerWriterSvc interface {
	// RecordAdjustment appends an adjustment and updates the ledger balance atomically.
	RecordAdjustment(ctx context.Context, params domain.AdjustmentParams) (*domain.Adjustment, error)

	// ReallocateFunds moves amount between two allocations of the same business.
	// The donor must have sufficient available balance.
	ReallocateFunds(ctx context.Context, businessID, fromAllocationID, toAllocationID string, amount domain.Amount) (*domain.Reallocation, error)
}

// LedgerTxSvc defines ledger operations composed into a caller's transaction.
// Callers hold the account lock.
type LedgerTxSvc interface {
	RecordAdjustmentTx(ctx context.Context, tx repositories.Tx, params domain.AdjustmentParams) (*domain.Adjustment, error)
	AvailableBalanceTx(ctx context.Context, tx repositories.Tx, accountID string) (domain.Amount, error)
	// TransferTx posts a REALLOCATE pair between two locked accounts without checking the donor's available balance.
	TransferTx(ctx context.Context, tx repositories.Tx, from, to domain.Account, amount domain.Amount) (*domain.Reallocation, error)
}

// LedgerSvcFacade combines all ledger service interfaces
type LedgerSvcFacade interface {
	LedgerReaderSvc
	LedgerWriterSvc
	LedgerTxSvc
}

// AdjustmentPublisher receives AdjustmentPersisted events after commit. Publish must not block.
type AdjustmentPublisher interface {
	Publish(event domain.AdjustmentPersisted)
}

// AdjustmentListener reacts to persisted adjustments.
type AdjustmentListener interface {
	OnAdjustment(ctx context.Context, event domain.AdjustmentPersisted) error
}
