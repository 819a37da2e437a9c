// Package money converts between external 2-decimal amounts and the
// integer cents used everywhere inside the ledger. Balance arithmetic
// never touches floats or decimals; those exist only at the boundary.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrTooManyDecimals = errors.New("amount has more than 2 decimal places")
	ErrNegativeAmount  = errors.New("amount must not be negative")
)

var hundred = decimal.NewFromInt(100)

// ParseCents parses a decimal string such as "25000.00" into integer cents.
// Amounts with more than two decimal places are rejected rather than rounded,
// so a malformed input can never make an entry balance by accident.
func ParseCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return DecimalToCents(d)
}

// DecimalToCents converts a decimal amount to cents, rejecting sub-cent precision.
func DecimalToCents(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	scaled := d.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrTooManyDecimals
	}
	return scaled.IntPart(), nil
}

// FormatCents renders cents as a fixed 2-decimal string ("-249.99").
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// CentsToDecimal exposes a balance to reporting consumers as a decimal value.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
