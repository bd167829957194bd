package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a signed monetary value in a single currency.
// Debits are negative, credits are positive.
type Amount struct {
	Currency Currency        `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// ZeroAmount returns a zero amount in the given currency.
func ZeroAmount(currency Currency) Amount {
	return Amount{Currency: currency, Amount: decimal.Zero}
}

// NewAmount builds an amount from a currency and a decimal value.
func NewAmount(currency Currency, value decimal.Decimal) Amount {
	return Amount{Currency: currency, Amount: value}
}

// MustAmount parses a decimal string. Intended for constants and tests.
func MustAmount(currency Currency, value string) Amount {
	return Amount{Currency: currency, Amount: decimal.RequireFromString(value)}
}

// Add returns a + other. Both amounts must share a currency; callers validate
// currencies at the boundary.
func (a Amount) Add(other Amount) Amount {
	return Amount{Currency: a.Currency, Amount: a.Amount.Add(other.Amount)}
}

// Sub returns a - other.
func (a Amount) Sub(other Amount) Amount {
	return Amount{Currency: a.Currency, Amount: a.Amount.Sub(other.Amount)}
}

func (a Amount) Neg() Amount {
	return Amount{Currency: a.Currency, Amount: a.Amount.Neg()}
}

func (a Amount) Abs() Amount {
	return Amount{Currency: a.Currency, Amount: a.Amount.Abs()}
}

func (a Amount) IsNegative() bool { return a.Amount.IsNegative() }
func (a Amount) IsPositive() bool { return a.Amount.IsPositive() }
func (a Amount) IsZero() bool     { return a.Amount.IsZero() }

// Equal compares currency and value; 10 and 10.00 are equal.
func (a Amount) Equal(other Amount) bool {
	return a.Currency == other.Currency && a.Amount.Equal(other.Amount)
}

// SameCurrency reports an error when other is in a different currency.
func (a Amount) SameCurrency(other Amount) error {
	if a.Currency != other.Currency {
		return fmt.Errorf("currency mismatch: %s vs %s", a.Currency, other.Currency)
	}
	return nil
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Amount.StringFixed(2), a.Currency)
}

// MinDecimal returns the smaller of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
