package domain

import "time"

// HoldStatus is the lifecycle state of a hold. RELEASED and EXPIRED are terminal.
type HoldStatus string

const (
	HoldPlaced   HoldStatus = "PLACED"
	HoldReleased HoldStatus = "RELEASED"
	HoldExpired  HoldStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition is allowed.
func (s HoldStatus) IsTerminal() bool {
	return s == HoldReleased || s == HoldExpired
}

// Hold reserves funds against an account. Amount is never positive.
type Hold struct {
	HoldID           string     `json:"holdID"`
	BusinessID       string     `json:"businessID"`
	AccountID        string     `json:"accountID"`
	CardID           string     `json:"cardID,omitempty"`
	NetworkMessageID string     `json:"networkMessageID,omitempty"` // Message that placed the hold
	Amount           Amount     `json:"amount"`
	Status           HoldStatus `json:"status"`
	ExpirationDate   time.Time  `json:"expirationDate"`
	Version          int64      `json:"version"`
	AuditFields
}

// PlaceHoldRequest carries everything needed to place a hold.
type PlaceHoldRequest struct {
	AccountID        string
	CardID           string
	NetworkMessageID string
	Amount           Amount
	ExpirationDate   time.Time
}

// HoldExpiryNotice is dispatched once per business after a sweep.
type HoldExpiryNotice struct {
	BusinessID string
	Count      int
	Amount     Amount
	SweptAt    time.Time
}

// BusinessSuspensionNotice is dispatched when a business's total balance goes negative.
type BusinessSuspensionNotice struct {
	BusinessID   string
	TotalBalance Amount
	SuspendedAt  time.Time
}
