package domain

import "time"

// AdjustmentType classifies a ledger movement.
type AdjustmentType string

const (
	AdjustmentDeposit        AdjustmentType = "DEPOSIT"
	AdjustmentWithdraw       AdjustmentType = "WITHDRAW"
	AdjustmentReallocate     AdjustmentType = "REALLOCATE"
	AdjustmentManual         AdjustmentType = "MANUAL"
	AdjustmentNetworkCapture AdjustmentType = "NETWORK_CAPTURE"
	AdjustmentNetworkRefund  AdjustmentType = "NETWORK_REFUND"
	AdjustmentFee            AdjustmentType = "FEE"
)

// IsNetwork reports whether the adjustment came from card network activity and counts towards spend usage.
func (t AdjustmentType) IsNetwork() bool {
	return t == AdjustmentNetworkCapture || t == AdjustmentNetworkRefund
}

// Valid reports whether t is a known adjustment type.
func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentDeposit, AdjustmentWithdraw, AdjustmentReallocate, AdjustmentManual,
		AdjustmentNetworkCapture, AdjustmentNetworkRefund, AdjustmentFee:
		return true
	}
	return false
}

// Adjustment is an immutable ledger entry. The sum of an account's adjustments equals its ledger balance.
type Adjustment struct {
	AdjustmentID     string         `json:"adjustmentID"`
	BusinessID       string         `json:"businessID"`
	AllocationID     string         `json:"allocationID"`
	AccountID        string         `json:"accountID"`
	CardID           string         `json:"cardID,omitempty"`
	NetworkMessageID string         `json:"networkMessageID,omitempty"`
	Type             AdjustmentType `json:"type"`
	Amount           Amount         `json:"amount"`
	EffectiveDate    time.Time      `json:"effectiveDate"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// AdjustmentParams describes an adjustment to record against an account.
type AdjustmentParams struct {
	AccountID        string
	Type             AdjustmentType
	Amount           Amount
	CardID           string
	NetworkMessageID string
}

// AdjustmentPersisted is published after the transaction recording an adjustment commits.
type AdjustmentPersisted struct {
	AdjustmentID string
	BusinessID   string
	AllocationID string
	AccountID    string
	Type         AdjustmentType
	Amount       Amount
	OccurredAt   time.Time
}

// Reallocation is the debit/credit adjustment pair produced by moving funds between allocations.
type Reallocation struct {
	BusinessID string     `json:"businessID"`
	From       Adjustment `json:"from"`
	To         Adjustment `json:"to"`
}
