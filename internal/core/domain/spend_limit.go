package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SpendLimitOwnerType is the kind of entity a spend limit configuration belongs to.
type SpendLimitOwnerType string

const (
	OwnerCard       SpendLimitOwnerType = "CARD"
	OwnerAllocation SpendLimitOwnerType = "ALLOCATION"
)

func (t SpendLimitOwnerType) Valid() bool {
	return t == OwnerCard || t == OwnerAllocation
}

// LimitType is the kind of spending a limit caps.
type LimitType string

const (
	LimitPurchase LimitType = "PURCHASE"
)

// LimitPeriod is the rolling window a limit applies to.
type LimitPeriod string

const (
	PeriodDaily   LimitPeriod = "DAILY"
	PeriodMonthly LimitPeriod = "MONTHLY"
)

// Duration returns the length of the rolling window.
func (p LimitPeriod) Duration() time.Duration {
	switch p {
	case PeriodDaily:
		return 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

func (p LimitPeriod) Valid() bool {
	return p.Duration() > 0
}

// CurrencyLimits maps currency -> limit type -> period -> cap.
type CurrencyLimits map[Currency]map[LimitType]map[LimitPeriod]decimal.Decimal

// SpendLimitConfig holds the caps and controls configured for a card or allocation.
type SpendLimitConfig struct {
	BusinessID           string              `json:"businessID"`
	OwnerType            SpendLimitOwnerType `json:"ownerType"`
	OwnerID              string              `json:"ownerID"`
	Limits               CurrencyLimits      `json:"limits"`
	DisabledMccGroups    []MccGroup          `json:"disabledMccGroups"`
	DisabledPaymentTypes []PaymentType       `json:"disabledPaymentTypes"`
	DisableForeign       bool                `json:"disableForeign"`
	AuditFields
}

// PeriodCap is one cap of a configuration in evaluation order.
type PeriodCap struct {
	LimitType LimitType
	Period    LimitPeriod
	Cap       decimal.Decimal
}

// CapsFor returns the caps configured for a currency sorted by limit type then period.
func (c SpendLimitConfig) CapsFor(currency Currency) []PeriodCap {
	var caps []PeriodCap
	for limitType, periods := range c.Limits[currency] {
		for period, limit := range periods {
			caps = append(caps, PeriodCap{LimitType: limitType, Period: period, Cap: limit})
		}
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].LimitType != caps[j].LimitType {
			return caps[i].LimitType < caps[j].LimitType
		}
		return caps[i].Period < caps[j].Period
	})
	return caps
}

// DisablesMccGroup reports whether group is disabled.
func (c SpendLimitConfig) DisablesMccGroup(group MccGroup) bool {
	for _, g := range c.DisabledMccGroups {
		if g == group {
			return true
		}
	}
	return false
}

// DisablesPaymentType reports whether paymentType is disabled.
func (c SpendLimitConfig) DisablesPaymentType(paymentType PaymentType) bool {
	for _, p := range c.DisabledPaymentTypes {
		if p == paymentType {
			return true
		}
	}
	return false
}

// SpendCheckRequest is the input of a spend limit evaluation. Amount is signed and post-fee.
type SpendCheckRequest struct {
	BusinessID   string
	AllocationID string
	AccountID    string // Account of the allocation, used to measure allocation usage
	CardID       string
	Amount       Amount
	MccGroup     MccGroup
	PaymentType  PaymentType
	Foreign      bool
	AsOf         time.Time
}

// SpendCheckResult is either allowed or a violation with its decline reason.
type SpendCheckResult struct {
	Allowed bool
	Reason  DeclineReason
	Details DeclineDetails
}

// SpendAllowed is the result of a passing check.
var SpendAllowed = SpendCheckResult{Allowed: true}

// SpendUsageQuery selects the spend of one card, or of one allocation's account, inside a window.
// Exactly one of CardID and AccountID is set.
type SpendUsageQuery struct {
	CardID    string
	AccountID string
	Currency  Currency
	From      time.Time
	To        time.Time
}

// Matches reports whether a record with the given card and account belongs to the queried owner.
func (q SpendUsageQuery) Matches(cardID, accountID string) bool {
	if q.CardID != "" {
		return cardID == q.CardID
	}
	return accountID == q.AccountID
}

// InWindow reports whether t lies in [From, To].
func (q SpendUsageQuery) InWindow(t time.Time) bool {
	return !t.Before(q.From) && !t.After(q.To)
}
