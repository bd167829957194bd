package domain

import "time"

// DeclineReason explains why an authorization was refused. Only the first matching reason is recorded.
type DeclineReason string

const (
	DeclineAddressPostalCodeMismatch DeclineReason = "ADDRESS_POSTAL_CODE_MISMATCH"
	DeclineCVCMismatch               DeclineReason = "CVC_MISMATCH"
	DeclineExpiryMismatch            DeclineReason = "EXPIRY_MISMATCH"
	DeclineCardNotFound              DeclineReason = "CARD_NOT_FOUND"
	DeclineInvalidCardStatus         DeclineReason = "INVALID_CARD_STATUS"
	DeclineUnlinkedCard              DeclineReason = "UNLINKED_CARD"
	DeclineBusinessSuspended         DeclineReason = "BUSINESS_SUSPENDED"
	DeclineLimitExceeded             DeclineReason = "LIMIT_EXCEEDED"
	DeclineSpendControlViolated      DeclineReason = "SPEND_CONTROL_VIOLATED"
	DeclineInsufficientFunds         DeclineReason = "INSUFFICIENT_FUNDS"
)

// DeclineDetails explains which limit or control caused a decline.
type DeclineDetails struct {
	OwnerType      SpendLimitOwnerType `json:"ownerType,omitempty"`
	LimitType      LimitType           `json:"limitType,omitempty"`
	LimitPeriod    LimitPeriod         `json:"limitPeriod,omitempty"`
	ExceededAmount *Amount             `json:"exceededAmount,omitempty"`
	MccGroup       MccGroup            `json:"mccGroup,omitempty"`
	PaymentType    PaymentType         `json:"paymentType,omitempty"`
	Foreign        bool                `json:"foreign,omitempty"`
}

// Decline records a refused authorization. AccountID is empty when the card could not be resolved.
type Decline struct {
	DeclineID        string         `json:"declineID"`
	BusinessID       string         `json:"businessID,omitempty"`
	AccountID        string         `json:"accountID,omitempty"`
	CardID           string         `json:"cardID,omitempty"`
	NetworkMessageID string         `json:"networkMessageID"`
	Amount           Amount         `json:"amount"`
	Reason           DeclineReason  `json:"reason"`
	Details          DeclineDetails `json:"details"`
	CreatedAt        time.Time      `json:"createdAt"`
}
