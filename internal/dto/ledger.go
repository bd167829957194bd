package dto

import (
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateAdjustmentRequest records an operator initiated ledger movement.
// Amount is signed; deposits are positive and withdrawals negative.
type CreateAdjustmentRequest struct {
	Type     domain.AdjustmentType `json:"type" binding:"required,oneof=DEPOSIT WITHDRAW MANUAL"`
	Amount   decimal.Decimal       `json:"amount"`
	Currency string                `json:"currency" binding:"required,len=3"`
}

func (r CreateAdjustmentRequest) ToParams(accountID string) domain.AdjustmentParams {
	return domain.AdjustmentParams{
		AccountID: accountID,
		Type:      r.Type,
		Amount:    domain.NewAmount(domain.Currency(r.Currency), r.Amount),
	}
}

// AdjustmentResponse mirrors domain.Adjustment.
type AdjustmentResponse struct {
	AdjustmentID     string                `json:"adjustmentID"`
	BusinessID       string                `json:"businessID"`
	AllocationID     string                `json:"allocationID"`
	AccountID        string                `json:"accountID"`
	CardID           string                `json:"cardID,omitempty"`
	NetworkMessageID string                `json:"networkMessageID,omitempty"`
	Type             domain.AdjustmentType `json:"type"`
	Amount           decimal.Decimal       `json:"amount"`
	Currency         domain.Currency       `json:"currency"`
	EffectiveDate    time.Time             `json:"effectiveDate"`
	CreatedAt        time.Time             `json:"createdAt"`
}

func ToAdjustmentResponse(a *domain.Adjustment) AdjustmentResponse {
	return AdjustmentResponse{
		AdjustmentID:     a.AdjustmentID,
		BusinessID:       a.BusinessID,
		AllocationID:     a.AllocationID,
		AccountID:        a.AccountID,
		CardID:           a.CardID,
		NetworkMessageID: a.NetworkMessageID,
		Type:             a.Type,
		Amount:           a.Amount.Amount,
		Currency:         a.Amount.Currency,
		EffectiveDate:    a.EffectiveDate,
		CreatedAt:        a.CreatedAt,
	}
}

// ReallocationRequest moves funds between two allocations of a business.
type ReallocationRequest struct {
	FromAllocationID string          `json:"fromAllocationID" binding:"required"`
	ToAllocationID   string          `json:"toAllocationID" binding:"required,nefield=FromAllocationID"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency" binding:"required,len=3"`
}

func (r ReallocationRequest) AmountValue() domain.Amount {
	return domain.NewAmount(domain.Currency(r.Currency), r.Amount)
}

// ReallocationResponse carries both halves of the transfer.
type ReallocationResponse struct {
	BusinessID string             `json:"businessID"`
	From       AdjustmentResponse `json:"from"`
	To         AdjustmentResponse `json:"to"`
}

func ToReallocationResponse(r *domain.Reallocation) ReallocationResponse {
	return ReallocationResponse{
		BusinessID: r.BusinessID,
		From:       ToAdjustmentResponse(&r.From),
		To:         ToAdjustmentResponse(&r.To),
	}
}

// BalanceResponse defines the data returned for an account balance query.
type BalanceResponse struct {
	AccountID        string          `json:"accountID"`
	AllocationID     string          `json:"allocationID,omitempty"`
	Currency         domain.Currency `json:"currency"`
	LedgerBalance    decimal.Decimal `json:"ledgerBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
}

func ToBalanceResponse(b domain.AccountBalance) BalanceResponse {
	return BalanceResponse{
		AccountID:        b.AccountID,
		AllocationID:     b.AllocationID,
		Currency:         b.LedgerBalance.Currency,
		LedgerBalance:    b.LedgerBalance.Amount,
		AvailableBalance: b.AvailableBalance.Amount,
	}
}

func ToListBalanceResponse(balances []domain.AccountBalance) []BalanceResponse {
	res := make([]BalanceResponse, len(balances))
	for i, b := range balances {
		res[i] = ToBalanceResponse(b)
	}
	return res
}

// ListActivitiesParams defines query parameters for the activity feed.
type ListActivitiesParams struct {
	Limit     int    `form:"limit,default=20" binding:"min=1,max=100"`
	NextToken string `form:"nextToken"`
}

// ActivityResponse mirrors domain.AccountActivity.
type ActivityResponse struct {
	ActivityID       string                `json:"activityID"`
	CardID           string                `json:"cardID,omitempty"`
	NetworkMessageID string                `json:"networkMessageID,omitempty"`
	Type             domain.ActivityType   `json:"type"`
	Status           domain.ActivityStatus `json:"status"`
	Amount           decimal.Decimal       `json:"amount"`
	Currency         domain.Currency       `json:"currency"`
	MerchantName     string                `json:"merchantName,omitempty"`
	HoldID           string                `json:"holdID,omitempty"`
	AdjustmentID     string                `json:"adjustmentID,omitempty"`
	ActivityTime     time.Time             `json:"activityTime"`
}

// ListActivitiesResponse is one page of the feed; NextToken is nil on the last page.
type ListActivitiesResponse struct {
	Activities []ActivityResponse `json:"activities"`
	NextToken  *string            `json:"nextToken"`
}

func ToListActivitiesResponse(page *domain.ActivityPage) ListActivitiesResponse {
	res := ListActivitiesResponse{Activities: make([]ActivityResponse, len(page.Activities))}
	for i, a := range page.Activities {
		res.Activities[i] = ActivityResponse{
			ActivityID:       a.ActivityID,
			CardID:           a.CardID,
			NetworkMessageID: a.NetworkMessageID,
			Type:             a.Type,
			Status:           a.Status,
			Amount:           a.Amount.Amount,
			Currency:         a.Amount.Currency,
			MerchantName:     a.MerchantName,
			HoldID:           a.HoldID,
			AdjustmentID:     a.AdjustmentID,
			ActivityTime:     a.ActivityTime,
		}
	}
	if page.NextToken != "" {
		token := page.NextToken
		res.NextToken = &token
	}
	return res
}
