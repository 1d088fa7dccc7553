// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and Real (BRL) representations.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxCents keeps every amount far from int64 overflow when summed.
var maxCents = decimal.New(1, 15)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts dot (1234.56) and comma (1234,56) decimal separators, the
// Brazilian grouped form (1.234,56) and an optional "R$" prefix. The third
// decimal place is rounded half-up. Returns ErrInvalidAmount for invalid
// formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34")       -> 1234, nil
//	ParseDecimalToCents("12,34")       -> 1234, nil
//	ParseDecimalToCents("R$ 1.234,56") -> 123456, nil
//	ParseDecimalToCents("12.345")      -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		// Brazilian notation: dots group thousands, comma marks decimals
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case r < '0' || r > '9':
			return 0, ErrInvalidAmount
		}
	}
	if dots > 1 {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.GreaterThanOrEqual(maxCents) {
		return 0, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2).IntPart()
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseMoney is ParseDecimalToCents returning a Money value.
func ParseMoney(s string) (Money, error) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

// Decimal returns the amount in Reais as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// MoneyFromDecimal rounds d to two places and converts it to cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// String formats the amount the way Brazilian users read it: R$ 1.234,56.
func (m Money) String() string {
	return FormatBRL(m.Cents)
}

// FormatBRL formats cents as a Real currency string (e.g., "R$ 1.234,56").
func FormatBRL(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	fixed := decimal.New(cents, -2).StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	s := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + s
	}
	return s
}

// MarshalJSON encodes the amount as a fixed two-place decimal string, e.g. "1000.00".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.Decimal().StringFixed(2) + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare decimal numbers. Zero and
// negative values decode; the operation receiving them decides whether they
// are acceptable. Magnitudes at or above maxCents are rejected.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return ErrInvalidAmount
	}
	if d.Abs().GreaterThanOrEqual(maxCents) {
		return ErrInvalidAmount
	}
	*m = MoneyFromDecimal(d)
	return nil
}
