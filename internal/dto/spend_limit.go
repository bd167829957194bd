package dto

import (
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

// SpendLimitRequest replaces the spend limit configuration of a card or allocation.
// Limits maps currency -> limit type -> period -> cap, e.g. {"USD": {"PURCHASE": {"DAILY": "500"}}}.
type SpendLimitRequest struct {
	Limits               domain.CurrencyLimits `json:"limits"`
	DisabledMccGroups    []domain.MccGroup     `json:"disabledMccGroups"`
	DisabledPaymentTypes []domain.PaymentType  `json:"disabledPaymentTypes" binding:"omitempty,dive,oneof=POS ONLINE MANUAL_ENTRY"`
	DisableForeign       bool                  `json:"disableForeign"`
}

func (r SpendLimitRequest) ToDomain(businessID string, ownerType domain.SpendLimitOwnerType, ownerID string) domain.SpendLimitConfig {
	return domain.SpendLimitConfig{
		BusinessID:           businessID,
		OwnerType:            ownerType,
		OwnerID:              ownerID,
		Limits:               r.Limits,
		DisabledMccGroups:    r.DisabledMccGroups,
		DisabledPaymentTypes: r.DisabledPaymentTypes,
		DisableForeign:       r.DisableForeign,
	}
}

// SpendLimitResponse mirrors domain.SpendLimitConfig.
type SpendLimitResponse struct {
	BusinessID           string                     `json:"businessID"`
	OwnerType            domain.SpendLimitOwnerType `json:"ownerType"`
	OwnerID              string                     `json:"ownerID"`
	Limits               domain.CurrencyLimits      `json:"limits"`
	DisabledMccGroups    []domain.MccGroup          `json:"disabledMccGroups"`
	DisabledPaymentTypes []domain.PaymentType       `json:"disabledPaymentTypes"`
	DisableForeign       bool                       `json:"disableForeign"`
	CreatedAt            time.Time                  `json:"createdAt"`
	LastUpdatedAt        time.Time                  `json:"lastUpdatedAt"`
}

func ToSpendLimitResponse(c *domain.SpendLimitConfig) SpendLimitResponse {
	limits := c.Limits
	if limits == nil {
		limits = domain.CurrencyLimits{}
	}
	return SpendLimitResponse{
		BusinessID:           c.BusinessID,
		OwnerType:            c.OwnerType,
		OwnerID:              c.OwnerID,
		Limits:               limits,
		DisabledMccGroups:    nonNil(c.DisabledMccGroups),
		DisabledPaymentTypes: nonNil(c.DisabledPaymentTypes),
		DisableForeign:       c.DisableForeign,
		CreatedAt:            c.CreatedAt,
		LastUpdatedAt:        c.LastUpdatedAt,
	}
}

// nonNil keeps empty lists serialized as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
