package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

func (t *memTx) FindAccountByID(_ context.Context, accountID string) (*domain.Account, error) {
	account, ok := t.state.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, apperrors.ErrNotFound)
	}
	return &account, nil
}

func (t *memTx) FindAccountsByBusinessID(_ context.Context, businessID string) ([]domain.Account, error) {
	var accounts []domain.Account
	for _, account := range t.state.accounts {
		if account.BusinessID == businessID {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].AccountID < accounts[j].AccountID })
	return accounts, nil
}

func (t *memTx) FindAccountBalance(_ context.Context, accountID string) (*domain.AccountBalance, error) {
	account, ok := t.state.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, apperrors.ErrNotFound)
	}
	balance := t.balanceOf(account)
	return &balance, nil
}

func (t *memTx) FindAccountBalancesByBusinessID(ctx context.Context, businessID string) ([]domain.AccountBalance, error) {
	accounts, err := t.FindAccountsByBusinessID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	balances := make([]domain.AccountBalance, len(accounts))
	for i, account := range accounts {
		balances[i] = t.balanceOf(account)
	}
	return balances, nil
}

func (t *memTx) balanceOf(account domain.Account) domain.AccountBalance {
	held := decimal.Zero
	for _, hold := range t.state.holds {
		if hold.AccountID == account.AccountID && hold.Status == domain.HoldPlaced {
			held = held.Add(hold.Amount.Amount)
		}
	}
	return domain.AccountBalance{
		AccountID:        account.AccountID,
		AllocationID:     account.AllocationID,
		LedgerBalance:    account.LedgerBalance,
		AvailableBalance: domain.NewAmount(account.LedgerBalance.Currency, account.LedgerBalance.Amount.Add(held)),
	}
}

func (t *memTx) SaveAccount(_ context.Context, account domain.Account) error {
	if _, exists := t.state.accounts[account.AccountID]; exists {
		return fmt.Errorf("account %s: %w", account.AccountID, apperrors.ErrDuplicate)
	}
	t.state.accounts[account.AccountID] = account
	return nil
}

func (t *memTx) AddToLedgerBalance(_ context.Context, accountID string, delta decimal.Decimal, now time.Time) error {
	account, ok := t.state.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, apperrors.ErrNotFound)
	}
	account.LedgerBalance.Amount = account.LedgerBalance.Amount.Add(delta)
	account.LastUpdatedAt = now
	t.state.accounts[accountID] = account
	return nil
}

// Transactions are serialized, so reads inside one already behave as locked reads.
func (t *memTx) FindAccountForUpdate(ctx context.Context, accountID string) (*domain.Account, error) {
	return t.FindAccountByID(ctx, accountID)
}

func (t *memTx) FindAccountsForUpdate(_ context.Context, accountIDs []string) (map[string]domain.Account, error) {
	result := make(map[string]domain.Account, len(accountIDs))
	for _, id := range accountIDs {
		account, ok := t.state.accounts[id]
		if !ok {
			return nil, fmt.Errorf("account %s: %w", id, apperrors.ErrNotFound)
		}
		result[id] = account
	}
	return result, nil
}

func (t *memTx) FindBusinessByID(_ context.Context, businessID string) (*domain.Business, error) {
	business, ok := t.state.businesses[businessID]
	if !ok {
		return nil, fmt.Errorf("business %s: %w", businessID, apperrors.ErrNotFound)
	}
	return &business, nil
}

func (t *memTx) FindBusinessForUpdate(ctx context.Context, businessID string) (*domain.Business, error) {
	return t.FindBusinessByID(ctx, businessID)
}

func (t *memTx) FindBusinessIDsNeedingReview(_ context.Context) ([]string, error) {
	negative := map[string]bool{}
	for _, account := range t.state.accounts {
		if account.LedgerBalance.IsNegative() {
			negative[account.BusinessID] = true
		}
	}
	var ids []string
	for id, business := range t.state.businesses {
		switch business.Status {
		case domain.BusinessSuspendedExpenditure:
			ids = append(ids, id)
		case domain.BusinessActive:
			if negative[id] {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *memTx) SaveBusiness(_ context.Context, business domain.Business) error {
	if _, exists := t.state.businesses[business.BusinessID]; exists {
		return fmt.Errorf("business %s: %w", business.BusinessID, apperrors.ErrDuplicate)
	}
	t.state.businesses[business.BusinessID] = business
	return nil
}

func (t *memTx) UpdateBusinessStatus(_ context.Context, businessID string, status domain.BusinessStatus, now time.Time) error {
	business, ok := t.state.businesses[businessID]
	if !ok {
		return fmt.Errorf("business %s: %w", businessID, apperrors.ErrNotFound)
	}
	business.Status = status
	business.LastUpdatedAt = now
	t.state.businesses[businessID] = business
	return nil
}

func (t *memTx) FindAllocationByID(_ context.Context, allocationID string) (*domain.Allocation, error) {
	allocation, ok := t.state.allocations[allocationID]
	if !ok {
		return nil, fmt.Errorf("allocation %s: %w", allocationID, apperrors.ErrNotFound)
	}
	return &allocation, nil
}

func (t *memTx) FindAllocationsByBusinessID(_ context.Context, businessID string) ([]domain.Allocation, error) {
	var allocations []domain.Allocation
	for _, allocation := range t.state.allocations {
		if allocation.BusinessID == businessID {
			allocations = append(allocations, allocation)
		}
	}
	sort.Slice(allocations, func(i, j int) bool { return allocations[i].AllocationID < allocations[j].AllocationID })
	return allocations, nil
}

func (t *memTx) SaveAllocation(_ context.Context, allocation domain.Allocation) error {
	if _, exists := t.state.allocations[allocation.AllocationID]; exists {
		return fmt.Errorf("allocation %s: %w", allocation.AllocationID, apperrors.ErrDuplicate)
	}
	t.state.allocations[allocation.AllocationID] = allocation
	return nil
}

func (t *memTx) FindCardByID(_ context.Context, cardID string) (*domain.Card, error) {
	card, ok := t.state.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("card %s: %w", cardID, apperrors.ErrNotFound)
	}
	return &card, nil
}

func (t *memTx) FindCardByExternalRef(_ context.Context, externalRef string) (*domain.Card, error) {
	for _, card := range t.state.cards {
		if card.ExternalRef == externalRef {
			return &card, nil
		}
	}
	return nil, fmt.Errorf("card ref %s: %w", externalRef, apperrors.ErrNotFound)
}

func (t *memTx) SaveCard(_ context.Context, card domain.Card) error {
	if _, exists := t.state.cards[card.CardID]; exists {
		return fmt.Errorf("card %s: %w", card.CardID, apperrors.ErrDuplicate)
	}
	t.state.cards[card.CardID] = card
	return nil
}

func (t *memTx) UpdateCard(_ context.Context, card domain.Card) error {
	if _, exists := t.state.cards[card.CardID]; !exists {
		return fmt.Errorf("card %s: %w", card.CardID, apperrors.ErrNotFound)
	}
	t.state.cards[card.CardID] = card
	return nil
}
