package postgres

import (
	"fmt"

	"github.com/govalues/money"
	"github.com/shopspring/decimal"
)

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

func newAmount(currency string, minor int64) (money.Amount, error) {
	return money.NewAmountFromMinorUnits(currency, minor)
}
