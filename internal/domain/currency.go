package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency describes a currency and its minor-unit scale.
type Currency struct {
	Code     string
	Name     string
	Exponent int32
}

// ExchangeRate converts From amounts into To amounts as of a date.
type ExchangeRate struct {
	ID   string
	From string
	To   string
	Rate decimal.Decimal
	AsOf time.Time
}

// Company is reference data owned by the external catalog; the core
// only needs its base currency to balance entries.
type Company struct {
	ID           string
	Name         string
	BaseCurrency string
	CreatedAt    time.Time
}

// Minor-unit exponents for ISO 4217 currencies handled by the core.
// Unlisted codes default to 2.
var currencyExponents = map[string]int32{
	"USD": 2, "EUR": 2, "GBP": 2, "JPY": 0,
	"CNY": 2, "AUD": 2, "CAD": 2, "CHF": 2,
	"SEK": 2, "NZD": 2, "KRW": 0, "SGD": 2,
	"NOK": 2, "MXN": 2, "INR": 2, "BRL": 2,
	"ZAR": 2, "TRY": 2, "HKD": 2, "PLN": 2,
	"KWD": 3, "BHD": 3, "TND": 3,
}

// ValidateCurrency checks the code against the known ISO 4217 set.
func ValidateCurrency(code string) error {
	if _, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(code))]; !ok {
		return ErrUnknownCurrency
	}

	return nil
}

// CurrencyExponent returns the minor-unit exponent for a currency code.
func CurrencyExponent(code string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(code)]; ok {
		return exp
	}

	return 2
}
