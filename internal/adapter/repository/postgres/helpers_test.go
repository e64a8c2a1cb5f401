package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecimalNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "-1", "123.456789", "-0.000001", "99999999.99"} {
		d := decimal.RequireFromString(s)

		got := numericToDecimal(decimalToNumeric(d))
		if !got.Equal(d) {
			t.Fatalf("round trip of %s gave %s", s, got.String())
		}
	}
}

func TestNumericToDecimalNull(t *testing.T) {
	got := numericToDecimal(decimalPtrToNumeric(nil))
	if !got.IsZero() {
		t.Fatalf("expected zero for null numeric, got %s", got.String())
	}

	if numericToDecimalPtr(decimalPtrToNumeric(nil)) != nil {
		t.Fatalf("expected nil pointer for null numeric")
	}
}

func TestTextPtrRoundTrip(t *testing.T) {
	if textToStringPtr(stringPtrToText(nil)) != nil {
		t.Fatalf("expected nil for nil input")
	}

	s := "ORD-1001"
	got := textToStringPtr(stringPtrToText(&s))
	if got == nil || *got != s {
		t.Fatalf("round trip lost value: %v", got)
	}
}
