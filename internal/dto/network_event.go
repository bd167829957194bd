package dto

import (
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// MerchantRequest describes the merchant of a network event.
type MerchantRequest struct {
	Name         string `json:"name"`
	CategoryCode int    `json:"categoryCode" binding:"gte=0,lte=9999"`
	Country      string `json:"country" binding:"omitempty,len=3"`
}

// VerificationRequest carries the verification checks performed by the network.
type VerificationRequest struct {
	AddressPostalCode domain.VerificationResult `json:"addressPostalCode" binding:"omitempty,oneof=MATCH MISMATCH NOT_PROVIDED"`
	CVC               domain.VerificationResult `json:"cvc" binding:"omitempty,oneof=MATCH MISMATCH NOT_PROVIDED"`
	Expiry            domain.VerificationResult `json:"expiry" binding:"omitempty,oneof=MATCH MISMATCH NOT_PROVIDED"`
}

// NetworkEventRequest is the webhook payload sent by the card network.
// Amount is the positive magnitude of the event.
type NetworkEventRequest struct {
	ExternalRef      string                     `json:"externalRef" binding:"required"`
	Type             domain.NetworkMessageType  `json:"type" binding:"required,oneof=AUTH_REQUEST AUTH_UPDATED AUTH_REVERSAL TRANSACTION_CREATED REFUND"`
	CardExternalRef  string                     `json:"cardExternalRef" binding:"required"`
	AuthorizationRef string                     `json:"authorizationRef"`
	Amount           decimal.Decimal            `json:"amount"`
	Currency         string                     `json:"currency" binding:"required,len=3"`
	Merchant         MerchantRequest            `json:"merchant"`
	Method           domain.AuthorizationMethod `json:"method" binding:"omitempty,oneof=CHIP CONTACTLESS SWIPE KEYED_IN ONLINE"`
	Verification     VerificationRequest        `json:"verification"`
	Incremental      bool                       `json:"incremental"`
	ReceivedAt       *time.Time                 `json:"receivedAt"` // Optional, defaults to the time of receipt
}

// ToDomain converts the request into a network event. now is used when the
// network did not stamp the event.
func (r NetworkEventRequest) ToDomain(now time.Time) domain.NetworkEvent {
	receivedAt := now
	if r.ReceivedAt != nil {
		receivedAt = *r.ReceivedAt
	}
	return domain.NetworkEvent{
		ExternalRef:      r.ExternalRef,
		Type:             r.Type,
		CardExternalRef:  r.CardExternalRef,
		AuthorizationRef: r.AuthorizationRef,
		Amount:           domain.NewAmount(domain.Currency(r.Currency), r.Amount),
		Merchant: domain.Merchant{
			Name:         r.Merchant.Name,
			CategoryCode: r.Merchant.CategoryCode,
			Country:      r.Merchant.Country,
		},
		Method: r.Method,
		Verification: domain.Verification{
			AddressPostalCode: r.Verification.AddressPostalCode,
			CVC:               r.Verification.CVC,
			Expiry:            r.Verification.Expiry,
		},
		Incremental: r.Incremental,
		ReceivedAt:  receivedAt,
	}
}

// NetworkEventResponse is returned to the network for every processed event, declines included.
type NetworkEventResponse struct {
	Decision         domain.Decision      `json:"decision"`
	Reason           domain.DeclineReason `json:"reason,omitempty"`
	NetworkMessageID string               `json:"networkMessageID"`
	ActivityID       string               `json:"activityID,omitempty"`
	HoldID           string               `json:"holdID,omitempty"`
	AdjustmentID     string               `json:"adjustmentID,omitempty"`
	DeclineID        string               `json:"declineID,omitempty"`
	Duplicate        bool                 `json:"duplicate"`
}

func ToNetworkEventResponse(o *domain.ProcessingOutcome) NetworkEventResponse {
	return NetworkEventResponse{
		Decision:         o.Decision,
		Reason:           o.Reason,
		NetworkMessageID: o.NetworkMessageID,
		ActivityID:       o.ActivityID,
		HoldID:           o.HoldID,
		AdjustmentID:     o.AdjustmentID,
		DeclineID:        o.DeclineID,
		Duplicate:        o.Duplicate,
	}
}
