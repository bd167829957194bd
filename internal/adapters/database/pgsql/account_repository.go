package pgsql

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type accountRepository struct {
	BaseRepository
}

var _ portsrepo.AccountRepositoryFacade = (*accountRepository)(nil)

const accountColumns = `account_id, business_id, allocation_id, currency, ledger_balance, created_at, last_updated_at`

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.AccountID,
		&a.BusinessID,
		&a.AllocationID,
		&a.LedgerBalance.Currency,
		&a.LedgerBalance.Amount,
		&a.CreatedAt,
		&a.LastUpdatedAt,
	)
	return a, err
}

func (r *accountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`
	account, err := scanAccount(r.q.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, mapError(err, "account "+accountID)
	}
	return &account, nil
}

func (r *accountRepository) FindAccountsByBusinessID(ctx context.Context, businessID string) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE business_id = $1 ORDER BY account_id;`
	rows, err := r.q.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts of business %s: %w", businessID, err)
	}
	accounts, err := collect(rows, scanAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to scan accounts of business %s: %w", businessID, err)
	}
	return accounts, nil
}

// accountBalanceSelect computes the available balance in the same statement as the ledger
// balance; under READ COMMITTED two statements could straddle a capture's commit.
const accountBalanceSelect = `
	SELECT a.account_id, a.allocation_id, a.currency, a.ledger_balance,
	       a.ledger_balance + COALESCE((
	           SELECT SUM(h.amount) FROM holds h
	           WHERE h.account_id = a.account_id AND h.status = 'PLACED'
	       ), 0)
	FROM accounts a
`

func scanAccountBalance(row pgx.Row) (domain.AccountBalance, error) {
	var b domain.AccountBalance
	err := row.Scan(
		&b.AccountID,
		&b.AllocationID,
		&b.LedgerBalance.Currency,
		&b.LedgerBalance.Amount,
		&b.AvailableBalance.Amount,
	)
	b.AvailableBalance.Currency = b.LedgerBalance.Currency
	return b, err
}

func (r *accountRepository) FindAccountBalance(ctx context.Context, accountID string) (*domain.AccountBalance, error) {
	balance, err := scanAccountBalance(r.q.QueryRow(ctx, accountBalanceSelect+` WHERE a.account_id = $1;`, accountID))
	if err != nil {
		return nil, mapError(err, "account "+accountID)
	}
	return &balance, nil
}

func (r *accountRepository) FindAccountBalancesByBusinessID(ctx context.Context, businessID string) ([]domain.AccountBalance, error) {
	rows, err := r.q.Query(ctx, accountBalanceSelect+` WHERE a.business_id = $1 ORDER BY a.account_id;`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances of business %s: %w", businessID, err)
	}
	balances, err := collect(rows, scanAccountBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to scan balances of business %s: %w", businessID, err)
	}
	return balances, nil
}

func (r *accountRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.q.Exec(ctx, query,
		account.AccountID,
		account.BusinessID,
		account.AllocationID,
		account.LedgerBalance.Currency,
		account.LedgerBalance.Amount,
		account.CreatedAt,
		account.LastUpdatedAt,
	)
	return mapError(err, "account "+account.AccountID)
}

func (r *accountRepository) AddToLedgerBalance(ctx context.Context, accountID string, delta decimal.Decimal, now time.Time) error {
	query := `UPDATE accounts SET ledger_balance = ledger_balance + $2, last_updated_at = $3 WHERE account_id = $1;`
	tag, err := r.q.Exec(ctx, query, accountID, delta, now)
	if err != nil {
		return fmt.Errorf("failed to update ledger balance of account %s: %w", accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *accountRepository) FindAccountForUpdate(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1 FOR UPDATE;`
	account, err := scanAccount(r.q.QueryRow(ctx, query, accountID))
	if err != nil {
		return nil, mapError(err, "account "+accountID)
	}
	return &account, nil
}

// FindAccountsForUpdate locks rows in ascending id order so concurrent callers cannot deadlock.
func (r *accountRepository) FindAccountsForUpdate(ctx context.Context, accountIDs []string) (map[string]domain.Account, error) {
	ids := slices.Clone(accountIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = ANY($1) ORDER BY account_id FOR UPDATE;`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	accounts, err := collect(rows, scanAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to scan locked accounts: %w", err)
	}
	result := make(map[string]domain.Account, len(accounts))
	for _, a := range accounts {
		result[a.AccountID] = a
	}
	for _, id := range ids {
		if _, ok := result[id]; !ok {
			return nil, fmt.Errorf("account %s: %w", id, apperrors.ErrNotFound)
		}
	}
	return result, nil
}

type businessRepository struct {
	BaseRepository
}

var _ portsrepo.BusinessRepositoryFacade = (*businessRepository)(nil)

const businessColumns = `business_id, name, currency, country, status, foreign_fee_percent, created_at, last_updated_at`

func scanBusiness(row pgx.Row) (domain.Business, error) {
	var b domain.Business
	err := row.Scan(
		&b.BusinessID,
		&b.Name,
		&b.Currency,
		&b.Country,
		&b.Status,
		&b.ForeignTransactionFeePercent,
		&b.CreatedAt,
		&b.LastUpdatedAt,
	)
	return b, err
}

func (r *businessRepository) FindBusinessByID(ctx context.Context, businessID string) (*domain.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE business_id = $1;`
	business, err := scanBusiness(r.q.QueryRow(ctx, query, businessID))
	if err != nil {
		return nil, mapError(err, "business "+businessID)
	}
	return &business, nil
}

func (r *businessRepository) FindBusinessForUpdate(ctx context.Context, businessID string) (*domain.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE business_id = $1 FOR UPDATE;`
	business, err := scanBusiness(r.q.QueryRow(ctx, query, businessID))
	if err != nil {
		return nil, mapError(err, "business "+businessID)
	}
	return &business, nil
}

func (r *businessRepository) SaveBusiness(ctx context.Context, business domain.Business) error {
	query := `
		INSERT INTO businesses (` + businessColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.q.Exec(ctx, query,
		business.BusinessID,
		business.Name,
		business.Currency,
		business.Country,
		business.Status,
		business.ForeignTransactionFeePercent,
		business.CreatedAt,
		business.LastUpdatedAt,
	)
	return mapError(err, "business "+business.BusinessID)
}

func (r *businessRepository) UpdateBusinessStatus(ctx context.Context, businessID string, status domain.BusinessStatus, now time.Time) error {
	query := `UPDATE businesses SET status = $2, last_updated_at = $3 WHERE business_id = $1;`
	tag, err := r.q.Exec(ctx, query, businessID, status, now)
	if err != nil {
		return fmt.Errorf("failed to update status of business %s: %w", businessID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("business %s: %w", businessID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *businessRepository) FindBusinessIDsNeedingReview(ctx context.Context) ([]string, error) {
	query := `
		SELECT b.business_id
		FROM businesses b
		WHERE b.status = 'SUSPENDED_EXPENDITURE'
		   OR (b.status = 'ACTIVE' AND EXISTS (
		       SELECT 1 FROM accounts a WHERE a.business_id = b.business_id AND a.ledger_balance < 0
		   ))
		ORDER BY b.business_id;
	`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query businesses needing review: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan businesses needing review: %w", err)
	}
	return ids, nil
}

type allocationRepository struct {
	BaseRepository
}

var _ portsrepo.AllocationRepositoryFacade = (*allocationRepository)(nil)

const allocationColumns = `allocation_id, business_id, parent_allocation_id, account_id, name, archived, created_at, last_updated_at`

func scanAllocation(row pgx.Row) (domain.Allocation, error) {
	var a domain.Allocation
	var parentID *string
	err := row.Scan(
		&a.AllocationID,
		&a.BusinessID,
		&parentID,
		&a.AccountID,
		&a.Name,
		&a.Archived,
		&a.CreatedAt,
		&a.LastUpdatedAt,
	)
	a.ParentAllocationID = deref(parentID)
	return a, err
}

func (r *allocationRepository) FindAllocationByID(ctx context.Context, allocationID string) (*domain.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE allocation_id = $1;`
	allocation, err := scanAllocation(r.q.QueryRow(ctx, query, allocationID))
	if err != nil {
		return nil, mapError(err, "allocation "+allocationID)
	}
	return &allocation, nil
}

func (r *allocationRepository) FindAllocationsByBusinessID(ctx context.Context, businessID string) ([]domain.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE business_id = $1 ORDER BY created_at, allocation_id;`
	rows, err := r.q.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations of business %s: %w", businessID, err)
	}
	allocations, err := collect(rows, scanAllocation)
	if err != nil {
		return nil, fmt.Errorf("failed to scan allocations of business %s: %w", businessID, err)
	}
	return allocations, nil
}

func (r *allocationRepository) SaveAllocation(ctx context.Context, allocation domain.Allocation) error {
	query := `
		INSERT INTO allocations (` + allocationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.q.Exec(ctx, query,
		allocation.AllocationID,
		allocation.BusinessID,
		nullable(allocation.ParentAllocationID),
		allocation.AccountID,
		allocation.Name,
		allocation.Archived,
		allocation.CreatedAt,
		allocation.LastUpdatedAt,
	)
	return mapError(err, "allocation "+allocation.AllocationID)
}

type cardRepository struct {
	BaseRepository
}

var _ portsrepo.CardRepositoryFacade = (*cardRepository)(nil)

const cardColumns = `card_id, business_id, external_ref, status, allocation_id, account_id, created_at, last_updated_at`

func scanCard(row pgx.Row) (domain.Card, error) {
	var c domain.Card
	var allocationID, accountID *string
	err := row.Scan(
		&c.CardID,
		&c.BusinessID,
		&c.ExternalRef,
		&c.Status,
		&allocationID,
		&accountID,
		&c.CreatedAt,
		&c.LastUpdatedAt,
	)
	c.AllocationID = deref(allocationID)
	c.AccountID = deref(accountID)
	return c, err
}

func (r *cardRepository) FindCardByID(ctx context.Context, cardID string) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE card_id = $1;`
	card, err := scanCard(r.q.QueryRow(ctx, query, cardID))
	if err != nil {
		return nil, mapError(err, "card "+cardID)
	}
	return &card, nil
}

func (r *cardRepository) FindCardByExternalRef(ctx context.Context, externalRef string) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE external_ref = $1;`
	card, err := scanCard(r.q.QueryRow(ctx, query, externalRef))
	if err != nil {
		return nil, mapError(err, "card ref "+externalRef)
	}
	return &card, nil
}

func (r *cardRepository) SaveCard(ctx context.Context, card domain.Card) error {
	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.q.Exec(ctx, query,
		card.CardID,
		card.BusinessID,
		card.ExternalRef,
		card.Status,
		nullable(card.AllocationID),
		nullable(card.AccountID),
		card.CreatedAt,
		card.LastUpdatedAt,
	)
	return mapError(err, "card "+card.CardID)
}

func (r *cardRepository) UpdateCard(ctx context.Context, card domain.Card) error {
	query := `
		UPDATE cards
		SET status = $2, allocation_id = $3, account_id = $4, last_updated_at = $5
		WHERE card_id = $1;
	`
	tag, err := r.q.Exec(ctx, query,
		card.CardID,
		card.Status,
		nullable(card.AllocationID),
		nullable(card.AccountID),
		card.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", card.CardID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card %s: %w", card.CardID, apperrors.ErrNotFound)
	}
	return nil
}
