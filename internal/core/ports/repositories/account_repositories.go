package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AccountReader defines read operations for account data
type AccountReader interface {
	// FindAccountByID retrieves a specific account by its unique identifier.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// FindAccountsByBusinessID lists every account of a business.
	FindAccountsByBusinessID(ctx context.Context, businessID string) ([]domain.Account, error)

	// FindAccountBalance reads the ledger balance and the sum of PLACED holds from a single
	// snapshot, so a concurrent capture is seen either entirely or not at all.
	FindAccountBalance(ctx context.Context, accountID string) (*domain.AccountBalance, error)

	// FindAccountBalancesByBusinessID is FindAccountBalance for every account of a business.
	FindAccountBalancesByBusinessID(ctx context.Context, businessID string) ([]domain.AccountBalance, error)
}

// AccountWriter defines write operations for account data
type AccountWriter interface {
	// SaveAccount persists a new account.
	SaveAccount(ctx context.Context, account domain.Account) error

	// AddToLedgerBalance applies delta to the stored ledger balance.
	AddToLedgerBalance(ctx context.Context, accountID string, delta decimal.Decimal, now time.Time) error
}

// AccountLocking defines row locking reads used inside a transaction.
type AccountLocking interface {
	// FindAccountForUpdate selects the account and locks its row until the transaction ends.
	FindAccountForUpdate(ctx context.Context, accountID string) (*domain.Account, error)

	// FindAccountsForUpdate locks several accounts in ascending id order.
	FindAccountsForUpdate(ctx context.Context, accountIDs []string) (map[string]domain.Account, error)
}

// AccountRepositoryFacade combines all account-related repository interfaces
type AccountRepositoryFacade interface {
	AccountReader
	AccountWriter
	AccountLocking
}

// BusinessRepositoryFacade defines persistence operations for businesses.
type BusinessRepositoryFacade interface {
	FindBusinessByID(ctx context.Context, businessID string) (*domain.Business, error)
	FindBusinessForUpdate(ctx context.Context, businessID string) (*domain.Business, error)
	SaveBusiness(ctx context.Context, business domain.Business) error
	UpdateBusinessStatus(ctx context.Context, businessID string, status domain.BusinessStatus, now time.Time) error

	// FindBusinessIDsNeedingReview lists businesses that have a negative account or are
	// SUSPENDED_EXPENDITURE, in id order. Closed businesses are excluded.
	FindBusinessIDsNeedingReview(ctx context.Context) ([]string, error)
}

// AllocationRepositoryFacade defines persistence operations for allocations.
type AllocationRepositoryFacade interface {
	FindAllocationByID(ctx context.Context, allocationID string) (*domain.Allocation, error)
	FindAllocationsByBusinessID(ctx context.Context, businessID string) ([]domain.Allocation, error)
	SaveAllocation(ctx context.Context, allocation domain.Allocation) error
}

// CardRepositoryFacade defines persistence operations for cards.
type CardRepositoryFacade interface {
	FindCardByID(ctx context.Context, cardID string) (*domain.Card, error)
	FindCardByExternalRef(ctx context.Context, externalRef string) (*domain.Card, error)
	SaveCard(ctx context.Context, card domain.Card) error
	UpdateCard(ctx context.Context, card domain.Card) error
}
