package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits an amount may carry.
const AmountScale = 2

// maxAmountLen bounds the text handed to the decimal parser.
const maxAmountLen = 32

// MaxAmount is the exclusive upper bound for any single amount.
var MaxAmount = decimal.New(1, 12)

// ParseAmount parses user or host supplied amount text.
// Blank input yields an invalid (unset) NullDecimal, which is distinct from zero.
// Negative, unparsable, exponent-form and out of range amounts are rejected.
func ParseAmount(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	if len(s) > maxAmountLen || strings.ContainsAny(s, "eE") {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s", ErrInvalidAmount, truncate(s))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	if err := CheckAmount(d); err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: %s", err, s)
	}
	return decimal.NewNullDecimal(d), nil
}

// CheckAmount reports whether d is usable as an amount: not negative, below
// MaxAmount and with at most AmountScale fractional digits.
func CheckAmount(d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	case !d.LessThan(MaxAmount):
		return fmt.Errorf("%w: must be less than %s", ErrInvalidAmount, MaxAmount.String())
	case !d.Equal(d.Truncate(AmountScale)):
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, AmountScale)
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= maxAmountLen {
		return s
	}
	return s[:maxAmountLen] + "..."
}

// FormatAmount formats an amount with two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

// ValueOrZero returns the amount held by n, or zero when it is unset.
func ValueOrZero(n decimal.NullDecimal) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}
