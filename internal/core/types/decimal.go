// Package types provides common type aliases and utilities.
package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits every stored amount carries.
const MoneyScale int32 = 2

// Precision mirrors a SQL DECIMAL(p,s) column.
type Precision struct {
	Digits int32 // total significant digits (p)
	Scale  int32 // fractional digits (s)
}

var (
	// Rate matches DECIMAL(10,2).
	Rate = Precision{Digits: 10, Scale: 2}
	// Amount matches DECIMAL(12,2).
	Amount = Precision{Digits: 12, Scale: 2}
	// Measure is used for tax rates and quantities that have no fixed schema type.
	Measure = Precision{Digits: 15, Scale: 4}
)

// Max returns the largest absolute value the column can hold.
func (p Precision) Max() decimal.Decimal {
	// 10^(p-s) - 10^-s
	return decimal.New(1, p.Digits-p.Scale).Sub(decimal.New(1, -p.Scale))
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundHalfUp rounds to places fractional digits, halves away from zero.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// ParseFixed parses text into a fixed-point value of the given precision.
// Surrounding blanks are ignored; exponent and grouping characters are rejected
// so that malformed text is surfaced rather than guessed.
func ParseFixed(s string, p Precision) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	if strings.ContainsAny(s, "eE,") {
		return decimal.Zero, fmt.Errorf("invalid numeric text %q", s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric text %q", s)
	}

	d = RoundHalfUp(d, p.Scale)
	if d.Abs().GreaterThan(p.Max()) {
		return decimal.Zero, fmt.Errorf("value %s overflows DECIMAL(%d,%d)", d.StringFixed(p.Scale), p.Digits, p.Scale)
	}
	return d, nil
}

// Percent returns round_half_up(100 * part / whole, 2).
// The ratio is undefined (Valid=false) when whole is zero.
// DivRound compares the exact remainder, so the quotient is rounded once.
func Percent(part, whole decimal.Decimal) decimal.NullDecimal {
	if whole.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(part.Mul(decimal.NewFromInt(100)).DivRound(whole, MoneyScale))
}

// Ratio returns round_half_up(num / den, 2), undefined when den is zero.
func Ratio(num decimal.Decimal, den int64) decimal.NullDecimal {
	if den == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(num.DivRound(decimal.NewFromInt(den), MoneyScale))
}

// FormatNull renders a nullable decimal for tabular output ("" when undefined).
func FormatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(MoneyScale)
}

// NullMoney is a nullable decimal; Valid=false means undefined or SQL NULL.
type NullMoney = decimal.NullDecimal
