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

func (t *memTx) SaveAdjustment(_ context.Context, adjustment domain.Adjustment) error {
	t.state.adjustments = append(t.state.adjustments, adjustment)
	return nil
}

func (t *memTx) FindAdjustmentByID(_ context.Context, adjustmentID string) (*domain.Adjustment, error) {
	for _, adj := range t.state.adjustments {
		if adj.AdjustmentID == adjustmentID {
			return &adj, nil
		}
	}
	return nil, fmt.Errorf("adjustment %s: %w", adjustmentID, apperrors.ErrNotFound)
}

func (t *memTx) FindAdjustmentsByAccountID(_ context.Context, accountID string) ([]domain.Adjustment, error) {
	var result []domain.Adjustment
	for _, adj := range t.state.adjustments {
		if adj.AccountID == accountID {
			result = append(result, adj)
		}
	}
	return result, nil
}

func (t *memTx) SumNetworkAdjustments(_ context.Context, query domain.SpendUsageQuery) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, adj := range t.state.adjustments {
		if !adj.Type.IsNetwork() || adj.Amount.Currency != query.Currency {
			continue
		}
		if query.Matches(adj.CardID, adj.AccountID) && query.InWindow(adj.EffectiveDate) {
			sum = sum.Add(adj.Amount.Amount)
		}
	}
	return sum, nil
}

func (t *memTx) FindHoldByID(_ context.Context, holdID string) (*domain.Hold, error) {
	hold, ok := t.state.holds[holdID]
	if !ok {
		return nil, fmt.Errorf("hold %s: %w", holdID, apperrors.ErrNotFound)
	}
	return &hold, nil
}

func (t *memTx) FindHoldsByIDs(_ context.Context, holdIDs []string) ([]domain.Hold, error) {
	var result []domain.Hold
	for _, id := range holdIDs {
		if hold, ok := t.state.holds[id]; ok {
			result = append(result, hold)
		}
	}
	return result, nil
}

func (t *memTx) FindPlacedHoldsByNetworkMessageIDs(_ context.Context, messageIDs []string) ([]domain.Hold, error) {
	wanted := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		wanted[id] = struct{}{}
	}
	var result []domain.Hold
	for _, hold := range t.state.holds {
		if _, ok := wanted[hold.NetworkMessageID]; ok && hold.Status == domain.HoldPlaced {
			result = append(result, hold)
		}
	}
	sortHolds(result)
	return result, nil
}

func (t *memTx) SumPlacedHoldsForOwner(_ context.Context, query domain.SpendUsageQuery) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, hold := range t.state.holds {
		if hold.Status != domain.HoldPlaced || hold.Amount.Currency != query.Currency {
			continue
		}
		if query.Matches(hold.CardID, hold.AccountID) && query.InWindow(hold.CreatedAt) {
			sum = sum.Add(hold.Amount.Amount)
		}
	}
	return sum, nil
}

func (t *memTx) FindExpiredPlacedHolds(_ context.Context, from, to time.Time, limit int) ([]domain.Hold, error) {
	var result []domain.Hold
	for _, hold := range t.state.holds {
		if hold.Status != domain.HoldPlaced {
			continue
		}
		if hold.ExpirationDate.Before(from) || hold.ExpirationDate.After(to) {
			continue
		}
		result = append(result, hold)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ExpirationDate.Equal(result[j].ExpirationDate) {
			return result[i].ExpirationDate.Before(result[j].ExpirationDate)
		}
		return result[i].HoldID < result[j].HoldID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (t *memTx) SaveHold(_ context.Context, hold domain.Hold) error {
	if _, exists := t.state.holds[hold.HoldID]; exists {
		return fmt.Errorf("hold %s: %w", hold.HoldID, apperrors.ErrDuplicate)
	}
	t.state.holds[hold.HoldID] = hold
	return nil
}

func (t *memTx) TransitionPlacedHold(_ context.Context, holdID string, to domain.HoldStatus, now time.Time) (bool, error) {
	hold, ok := t.state.holds[holdID]
	if !ok {
		return false, fmt.Errorf("hold %s: %w", holdID, apperrors.ErrNotFound)
	}
	if hold.Status != domain.HoldPlaced {
		return false, nil
	}
	hold.Status = to
	hold.Version++
	hold.LastUpdatedAt = now
	t.state.holds[holdID] = hold
	return true, nil
}

func sortHolds(holds []domain.Hold) {
	sort.Slice(holds, func(i, j int) bool {
		if !holds[i].CreatedAt.Equal(holds[j].CreatedAt) {
			return holds[i].CreatedAt.Before(holds[j].CreatedAt)
		}
		return holds[i].HoldID < holds[j].HoldID
	})
}
