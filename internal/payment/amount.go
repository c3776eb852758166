package payment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// toCents parses a decimal amount such as "49.00" into cents.
func toCents(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than two decimals", amount)
	}
	return cents.IntPart(), nil
}

// formatCents renders cents as a two decimal amount.
func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
