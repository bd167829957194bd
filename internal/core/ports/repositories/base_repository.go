package repositories

import (
	"context"
)

// TransactionManager runs units of work atomically.
type TransactionManager interface {
	// WithinTx runs fn inside one database transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. Hooks registered with Tx.OnCommit run after a
	// successful commit.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes every repository bound to a single transaction.
type Tx interface {
	Accounts() AccountRepositoryFacade
	Businesses() BusinessRepositoryFacade
	Allocations() AllocationRepositoryFacade
	Cards() CardRepositoryFacade
	Adjustments() AdjustmentRepositoryFacade
	Holds() HoldRepositoryFacade
	NetworkMessages() NetworkMessageRepositoryFacade
	Declines() DeclineRepositoryFacade
	Activities() ActivityRepositoryFacade
	SpendLimits() SpendLimitRepositoryFacade
	CorrectionJobs() CorrectionJobRepositoryFacade

	// OnCommit registers fn to run once the transaction has committed.
	OnCommit(fn func())
}
