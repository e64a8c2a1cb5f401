package domain

import (
	"github.com/shopspring/decimal"
)

// CostScale is the fixed number of fractional digits kept for weighted
// average unit costs.
const CostScale = 6

// Money is a fixed-point amount in a single currency. Arithmetic across
// currencies must go through Convert; mixing currencies directly fails
// with ErrInvalidScale.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney creates a Money value.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, ErrInvalidScale
	}

	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, ErrInvalidScale
	}

	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// Scale multiplies the amount by a rational factor. Used for cost
// allocation; the result keeps full precision until rounded.
func (m Money) Scale(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

// Cmp compares two amounts of the same currency: -1 if m < o, 0 if
// equal, +1 if m > o.
func (m Money) Cmp(o Money) (int, error) {
	if m.Currency != o.Currency {
		return 0, ErrInvalidScale
	}

	return m.Amount.Cmp(o.Amount), nil
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Convert converts m into the target currency at the given rate,
// rounding half-to-even at the target's minor-unit scale.
func (m Money) Convert(rate decimal.Decimal, target Currency) (Money, error) {
	if rate.LessThanOrEqual(decimal.Zero) {
		return Money{}, ErrInvalidRate
	}

	return Money{
		Amount:   m.Amount.Mul(rate).RoundBank(target.Exponent),
		Currency: target.Code,
	}, nil
}

// ConvertAmount converts a raw decimal between currencies at the given
// rate, rounding half-to-even at the target currency's minor-unit
// exponent. Helper for code that works on bare decimals.
func ConvertAmount(amount, rate decimal.Decimal, targetExponent int32) decimal.Decimal {
	return amount.Mul(rate).RoundBank(targetExponent)
}

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}
