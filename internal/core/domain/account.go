package domain

import (
	"github.com/shopspring/decimal"
)

// Account holds the ledger balance backing one allocation.
// The available balance is derived from the ledger balance and PLACED holds and is never stored.
type Account struct {
	AccountID     string `json:"accountID"`     // Primary Key (UUID)
	BusinessID    string `json:"businessID"`    // FK -> businesses.business_id
	AllocationID  string `json:"allocationID"`  // FK -> allocations.allocation_id
	LedgerBalance Amount `json:"ledgerBalance"` // Sum of all adjustments
	AuditFields
}

// AccountBalance is a point-in-time view of an account's balances.
type AccountBalance struct {
	AccountID        string `json:"accountID"`
	AllocationID     string `json:"allocationID"`
	LedgerBalance    Amount `json:"ledgerBalance"`
	AvailableBalance Amount `json:"availableBalance"`
}

// BusinessStatus is the lifecycle state of a business.
type BusinessStatus string

const (
	BusinessActive               BusinessStatus = "ACTIVE"
	BusinessSuspendedExpenditure BusinessStatus = "SUSPENDED_EXPENDITURE"
	BusinessClosed               BusinessStatus = "CLOSED"
)

// Business owns an allocation tree and the cards spending from it.
type Business struct {
	BusinessID string         `json:"businessID"`
	Name       string         `json:"name"`
	Currency   Currency       `json:"currency"`
	Country    string         `json:"country"` // ISO 3166 alpha-3, used to classify foreign transactions
	Status     BusinessStatus `json:"status"`
	// ForeignTransactionFeePercent overrides the configured default when set.
	ForeignTransactionFeePercent *decimal.Decimal `json:"foreignTransactionFeePercent,omitempty"`
	AuditFields
}

// Allocation is a node in a business's funding tree. The root has no parent.
type Allocation struct {
	AllocationID       string `json:"allocationID"`
	BusinessID         string `json:"businessID"`
	ParentAllocationID string `json:"parentAllocationID,omitempty"`
	AccountID          string `json:"accountID"`
	Name               string `json:"name"`
	Archived           bool   `json:"archived"`
	AuditFields
}

// IsRoot reports whether the allocation has no parent.
func (a Allocation) IsRoot() bool {
	return a.ParentAllocationID == ""
}

// CardStatus is the issuing status of a card.
type CardStatus string

const (
	CardActive    CardStatus = "ACTIVE"
	CardInactive  CardStatus = "INACTIVE"
	CardCancelled CardStatus = "CANCELLED"
)

// Card is a payment card. AllocationID and AccountID are empty while the card is unlinked.
type Card struct {
	CardID       string     `json:"cardID"`
	BusinessID   string     `json:"businessID"`
	ExternalRef  string     `json:"externalRef"` // Card identifier used by the network
	Status       CardStatus `json:"status"`
	AllocationID string     `json:"allocationID,omitempty"`
	AccountID    string     `json:"accountID,omitempty"`
	AuditFields
}

// IsLinked reports whether the card is attached to an allocation account.
func (c Card) IsLinked() bool {
	return c.AllocationID != "" && c.AccountID != ""
}
