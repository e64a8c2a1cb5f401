package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoney_AddMismatchedCurrencies(t *testing.T) {
	usd := NewMoney(decimal.NewFromInt(100), "USD")
	eur := NewMoney(decimal.NewFromInt(100), "EUR")

	if _, err := usd.Add(eur); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("expected ErrInvalidScale, got %v", err)
	}

	if _, err := usd.Sub(eur); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("expected ErrInvalidScale, got %v", err)
	}

	if _, err := usd.Cmp(eur); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("expected ErrInvalidScale, got %v", err)
	}
}

func TestMoney_Add(t *testing.T) {
	a := NewMoney(decimal.RequireFromString("10.25"), "USD")
	b := NewMoney(decimal.RequireFromString("0.75"), "USD")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sum.Amount.Equal(decimal.NewFromInt(11)) {
		t.Errorf("expected 11, got %s", sum.Amount)
	}
}

func TestMoney_Convert(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		rate     string
		target   Currency
		expected string
	}{
		{
			name:     "simple conversion",
			amount:   "100",
			rate:     "1.10",
			target:   Currency{Code: "USD", Exponent: 2},
			expected: "110",
		},
		{
			name:     "rounds half to even down",
			amount:   "1.005",
			rate:     "1",
			target:   Currency{Code: "USD", Exponent: 2},
			expected: "1",
		},
		{
			name:     "rounds half to even up",
			amount:   "1.015",
			rate:     "1",
			target:   Currency{Code: "USD", Exponent: 2},
			expected: "1.02",
		},
		{
			name:     "zero-exponent currency",
			amount:   "100",
			rate:     "151.3333",
			target:   Currency{Code: "JPY", Exponent: 0},
			expected: "15133",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMoney(decimal.RequireFromString(tt.amount), "EUR")

			got, err := m.Convert(decimal.RequireFromString(tt.rate), tt.target)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !got.Amount.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("expected %s, got %s", tt.expected, got.Amount)
			}

			if got.Currency != tt.target.Code {
				t.Errorf("expected currency %s, got %s", tt.target.Code, got.Currency)
			}
		})
	}
}

func TestMoney_ConvertRejectsBadRate(t *testing.T) {
	m := NewMoney(decimal.NewFromInt(100), "EUR")

	if _, err := m.Convert(decimal.Zero, Currency{Code: "USD", Exponent: 2}); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("expected ErrInvalidRate, got %v", err)
	}
}

func TestMoney_Scale(t *testing.T) {
	m := NewMoney(decimal.RequireFromString("9.99"), "USD")

	scaled := m.Scale(decimal.RequireFromString("3"))
	if !scaled.Amount.Equal(decimal.RequireFromString("29.97")) {
		t.Errorf("expected 29.97, got %s", scaled.Amount)
	}
}

func TestCurrencyExponent(t *testing.T) {
	if exp := CurrencyExponent("JPY"); exp != 0 {
		t.Errorf("expected 0 for JPY, got %d", exp)
	}

	if exp := CurrencyExponent("usd"); exp != 2 {
		t.Errorf("expected 2 for usd, got %d", exp)
	}

	// Unknown codes fall back to 2.
	if exp := CurrencyExponent("XXX"); exp != 2 {
		t.Errorf("expected 2 fallback, got %d", exp)
	}
}

func TestValidateCurrency(t *testing.T) {
	if err := ValidateCurrency("USD"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := ValidateCurrency("ZZZ"); !errors.Is(err, ErrUnknownCurrency) {
		t.Errorf("expected ErrUnknownCurrency, got %v", err)
	}
}
