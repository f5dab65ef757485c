package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const Places = 2

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// Parse reads a decimal amount with at most two fractional digits.
func Parse(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !HasValidPrecision(value) {
		return decimal.Zero, ErrTooManyDecimals
	}
	return value, nil
}

// HasValidPrecision reports whether value is representable with two decimals.
func HasValidPrecision(value decimal.Decimal) bool {
	return value.Equal(value.Truncate(Places))
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(Places)
}

// OrZero treats a NULL balance as zero.
func OrZero(value decimal.NullDecimal) decimal.Decimal {
	if !value.Valid {
		return decimal.Zero
	}
	return value.Decimal
}
