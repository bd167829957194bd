package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

var hundred = decimal.NewFromInt(100)

// eventAmounts are the amounts derived from one network event.
type eventAmounts struct {
	fee        domain.Amount // foreign transaction fee, zero for domestic merchants
	postFee    domain.Amount // requested + fee
	padded     domain.Amount // amount held; differs from postFee for fuel pre-authorizations
	expiration time.Time
	foreign    bool
}

// foreignFee returns amount * percent / 100 rounded half-up to cents.
func foreignFee(amount domain.Amount, percent decimal.Decimal) domain.Amount {
	fee := amount.Amount.Abs().Mul(percent).Div(hundred).Round(2)
	return domain.NewAmount(amount.Currency, fee)
}

// amountsFor computes fee, padding and hold expiration for a positive requested amount.
// Fuel dispensers authorize before the pump runs, so the initial request is padded to
// the configured ceiling and held for longer.
func (s *authorizationService) amountsFor(ec *eventContext, requested domain.Amount, allowPadding bool) eventAmounts {
	result := eventAmounts{
		fee:        domain.ZeroAmount(requested.Currency),
		expiration: ec.now.Add(s.settings.DefaultHoldExpiration),
		foreign:    s.isForeign(ec),
	}
	if result.foreign {
		result.fee = foreignFee(requested, s.feePercent(ec))
	}
	result.postFee = requested.Add(result.fee)
	result.padded = result.postFee

	if ec.event.Merchant.IsFuelDispenser() {
		result.expiration = ec.now.Add(s.settings.FuelHoldExpiration)
		if allowPadding && result.postFee.Amount.LessThan(s.settings.FuelPreauthCeiling) {
			result.padded = domain.NewAmount(requested.Currency, s.settings.FuelPreauthCeiling)
		}
	}
	return result
}

func (s *authorizationService) isForeign(ec *eventContext) bool {
	country := ec.event.Merchant.Country
	if country == "" {
		return false
	}
	home := s.settings.HomeCountry
	if ec.business != nil && ec.business.Country != "" {
		home = ec.business.Country
	}
	return country != home
}

func (s *authorizationService) feePercent(ec *eventContext) decimal.Decimal {
	if ec.business != nil && ec.business.ForeignTransactionFeePercent != nil {
		return *ec.business.ForeignTransactionFeePercent
	}
	return s.settings.DefaultForeignFeePercent
}

// verificationDecline returns the first failed verification, postal code first.
func verificationDecline(v domain.Verification) domain.DeclineReason {
	switch {
	case v.AddressPostalCode == domain.VerificationMismatch:
		return domain.DeclineAddressPostalCodeMismatch
	case v.CVC == domain.VerificationMismatch:
		return domain.DeclineCVCMismatch
	case v.Expiry == domain.VerificationMismatch:
		return domain.DeclineExpiryMismatch
	}
	return ""
}
