package services

import (
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// publisher receives adjustments after commit and may be nil.
func NewServiceContainer(
	store portsrepo.TransactionManager,
	locker portssvc.Locker,
	notifier portssvc.Notifier,
	publisher portssvc.AdjustmentPublisher,
	settings Settings,
) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	// The ledger is the base every other service composes into its transactions
	container.Ledger = NewLedgerService(store, locker, publisher, settings)
	container.Holds = NewHoldService(store, locker, container.Ledger, settings)
	container.SpendLimits = NewSpendLimitService(store, settings)

	container.Authorization = NewAuthorizationService(
		store,
		locker,
		container.Ledger,
		container.Holds,
		container.SpendLimits,
		settings,
	)
	container.HoldSweeper = NewHoldSweeper(store, locker, container.Holds, notifier, settings)
	container.NegativeBalance = NewNegativeBalanceService(store, locker, container.Ledger, notifier, settings)

	return container
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.LedgerSvcFacade     = (*ledgerService)(nil)
	_ portssvc.HoldSvcFacade       = (*holdService)(nil)
	_ portssvc.SpendLimitSvcFacade = (*spendLimitService)(nil)
)
