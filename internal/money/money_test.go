package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	cases := map[string]string{
		"40":      "40.00",
		"40.5":    "40.50",
		" 0.01 ":  "0.01",
		"1000.10": "1000.10",
		"-3.25":   "-3.25",
	}
	for input, want := range cases {
		got, err := Parse(input)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", input, err)
		}
		if Format(got) != want {
			t.Fatalf("%q: got %s want %s", input, Format(got), want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	if _, err := Parse(""); err != ErrInvalidAmount {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := Parse("ten"); err != ErrInvalidAmount {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := Parse("1.005"); err != ErrTooManyDecimals {
		t.Fatalf("expected too many decimals, got %v", err)
	}
}

func TestHasValidPrecision(t *testing.T) {
	if !HasValidPrecision(decimal.RequireFromString("12.30")) {
		t.Fatalf("12.30 should be valid")
	}
	if !HasValidPrecision(decimal.RequireFromString("12.300")) {
		t.Fatalf("trailing zeros should be valid")
	}
	if HasValidPrecision(decimal.RequireFromString("0.001")) {
		t.Fatalf("0.001 should be invalid")
	}
}

func TestOrZero(t *testing.T) {
	if !OrZero(decimal.NullDecimal{}).IsZero() {
		t.Fatalf("null balance should be zero")
	}
	value := decimal.NullDecimal{Decimal: decimal.RequireFromString("5.5"), Valid: true}
	if Format(OrZero(value)) != "5.50" {
		t.Fatalf("unexpected value %s", OrZero(value))
	}
}
