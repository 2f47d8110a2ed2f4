// Package core provides money conversion helpers.
//
// Amounts travel through the API as decimals and are stored as integer
// cents. Conversion rounds half away from zero on the third decimal place.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Ten billion, well inside int64 cents.
var maxAmount = decimal.New(10_000_000_000, 0)

func init() {
	// JSON clients expect numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// RoundCents rounds an amount to two decimal places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToCents converts a decimal amount to integer cents with rounding.
//
// Examples:
//
//	ToCents(12.34)  -> 1234
//	ToCents(12.345) -> 1235
//	ToCents(-0.005) -> -1
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts stored cents back to a two-place decimal.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ParseAmount parses a user supplied amount, accepting a decimal comma.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "amount is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "amount must be a number"}
	}
	return RoundCents(d), nil
}

var hundred = decimal.NewFromInt(100)

// Percentage returns 100*part/whole rounded to two places and clamped to
// [0, 100], or zero when whole is zero. Rounded shares of one whole may sum
// to at most 100 + 0.005 per share.
func Percentage(part, whole int64) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	p := decimal.NewFromInt(part).
		Mul(hundred).
		DivRound(decimal.NewFromInt(whole), 8).
		Round(2)
	switch {
	case p.IsNegative():
		return decimal.Zero
	case p.GreaterThan(hundred):
		return hundred
	}
	return p
}

// Average returns total/count in decimal, zero when count is zero.
func Average(totalCents, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return FromCents(totalCents).DivRound(decimal.NewFromInt(count), 4)
}
