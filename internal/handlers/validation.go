package handlers

import (
	"encoding/json"
	"errors"

	"wallet/internal/money"

	"github.com/shopspring/decimal"
)

var errInvalidAmount = errors.New("invalid amount")

// parseAmount accepts the amount as a JSON number or a numeric string.
func parseAmount(raw json.Number) (decimal.Decimal, error) {
	amount, err := money.Parse(raw.String())
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, errInvalidAmount
	}
	return amount, nil
}
