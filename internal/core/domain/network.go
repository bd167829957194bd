package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
)

// NetworkMessageType is the kind of card network event.
type NetworkMessageType string

const (
	AuthRequest        NetworkMessageType = "AUTH_REQUEST"
	AuthUpdated        NetworkMessageType = "AUTH_UPDATED"
	AuthReversal       NetworkMessageType = "AUTH_REVERSAL"
	TransactionCreated NetworkMessageType = "TRANSACTION_CREATED"
	Refund             NetworkMessageType = "REFUND"
)

// Valid reports whether t is a known message type.
func (t NetworkMessageType) Valid() bool {
	switch t {
	case AuthRequest, AuthUpdated, AuthReversal, TransactionCreated, Refund:
		return true
	}
	return false
}

// VerificationResult is the outcome of one network side verification check.
type VerificationResult string

const (
	VerificationMatch       VerificationResult = "MATCH"
	VerificationMismatch    VerificationResult = "MISMATCH"
	VerificationNotProvided VerificationResult = "NOT_PROVIDED"
)

// Verification holds the network's verification results for an authorization request.
type Verification struct {
	AddressPostalCode VerificationResult `json:"addressPostalCode,omitempty"`
	CVC               VerificationResult `json:"cvc,omitempty"`
	Expiry            VerificationResult `json:"expiry,omitempty"`
}

// Merchant identifies where the card was used.
type Merchant struct {
	Name         string `json:"name"`
	CategoryCode int    `json:"categoryCode"`
	Country      string `json:"country"` // ISO 3166 alpha-3
}

// NetworkEvent is an inbound card network message. Amount is the positive magnitude;
// the message type decides the sign applied to the ledger.
type NetworkEvent struct {
	ExternalRef      string              `json:"externalRef" validate:"required"`
	Type             NetworkMessageType  `json:"type" validate:"required"`
	CardExternalRef  string              `json:"cardExternalRef" validate:"required"`
	AuthorizationRef string              `json:"authorizationRef"` // Groups every message of one authorization
	Amount           Amount              `json:"amount"`
	Merchant         Merchant            `json:"merchant"`
	Method           AuthorizationMethod `json:"method,omitempty"`
	Verification     Verification        `json:"verification"`
	Incremental      bool                `json:"incremental"`
	ReceivedAt       time.Time           `json:"receivedAt"`
}

// ProcessingStatus is the state of a network message processing record.
type ProcessingStatus string

const (
	StatusReceived  ProcessingStatus = "RECEIVED"
	StatusValidated ProcessingStatus = "VALIDATED"
	StatusApproved  ProcessingStatus = "APPROVED"
	StatusDeclined  ProcessingStatus = "DECLINED"
	StatusSettled   ProcessingStatus = "SETTLED"
	StatusReversed  ProcessingStatus = "REVERSED"
	StatusExpired   ProcessingStatus = "EXPIRED"
)

var processingTransitions = map[ProcessingStatus][]ProcessingStatus{
	StatusReceived:  {StatusValidated, StatusDeclined},
	StatusValidated: {StatusApproved, StatusDeclined},
	StatusApproved:  {StatusSettled, StatusReversed, StatusExpired},
}

// CanTransition reports whether from -> to is allowed.
func (s ProcessingStatus) CanTransition(to ProcessingStatus) bool {
	for _, next := range processingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transition.
func (s ProcessingStatus) IsTerminal() bool {
	return len(processingTransitions[s]) == 0
}

// NetworkMessage is the processing record stored for every network event.
type NetworkMessage struct {
	NetworkMessageID string             `json:"networkMessageID"`
	GroupID          string             `json:"groupID"` // ID of the first message of the authorization
	ExternalRef      string             `json:"externalRef"`
	AuthorizationRef string             `json:"authorizationRef,omitempty"`
	Type             NetworkMessageType `json:"type"`
	Status           ProcessingStatus   `json:"status"`
	BusinessID       string             `json:"businessID,omitempty"`
	AllocationID     string             `json:"allocationID,omitempty"`
	AccountID        string             `json:"accountID,omitempty"`
	CardID           string             `json:"cardID,omitempty"`
	CardExternalRef  string             `json:"cardExternalRef"`
	RequestedAmount  Amount             `json:"requestedAmount"`
	PaddedAmount     Amount             `json:"paddedAmount"`
	ApprovedAmount   Amount             `json:"approvedAmount"`
	Merchant         Merchant           `json:"merchant"`
	HoldID           string             `json:"holdID,omitempty"`
	AdjustmentID     string             `json:"adjustmentID,omitempty"`
	DeclineID        string             `json:"declineID,omitempty"`
	DeclineReason    DeclineReason      `json:"declineReason,omitempty"`
	ActivityID       string             `json:"activityID,omitempty"`
	ProcessedAt      time.Time          `json:"processedAt"`
	AuditFields
}

// Transition moves the record to the next status, rejecting moves the lifecycle does not allow.
func (m *NetworkMessage) Transition(to ProcessingStatus) error {
	if !m.Status.CanTransition(to) {
		return fmt.Errorf("%w: network message %s from %s to %s",
			apperrors.ErrInvalidStateTransition, m.NetworkMessageID, m.Status, to)
	}
	m.Status = to
	return nil
}

// Decision is the funds decision of an event.
type Decision string

const (
	Approved Decision = "APPROVED"
	Declined Decision = "DECLINED"
)

// ProcessingOutcome is the result of processing one network event.
type ProcessingOutcome struct {
	Decision         Decision      `json:"decision"`
	Reason           DeclineReason `json:"reason,omitempty"`
	NetworkMessageID string        `json:"networkMessageID"`
	ActivityID       string        `json:"activityID,omitempty"`
	HoldID           string        `json:"holdID,omitempty"`
	AdjustmentID     string        `json:"adjustmentID,omitempty"`
	DeclineID        string        `json:"declineID,omitempty"`
	Duplicate        bool          `json:"duplicate"`
}

// OutcomeFromMessage rebuilds the outcome stored on a processing record.
func OutcomeFromMessage(m NetworkMessage) ProcessingOutcome {
	decision := Approved
	if m.Status == StatusDeclined {
		decision = Declined
	}
	return ProcessingOutcome{
		Decision:         decision,
		Reason:           m.DeclineReason,
		NetworkMessageID: m.NetworkMessageID,
		ActivityID:       m.ActivityID,
		HoldID:           m.HoldID,
		AdjustmentID:     m.AdjustmentID,
		DeclineID:        m.DeclineID,
	}
}
