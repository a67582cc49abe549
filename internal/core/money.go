// Package core holds the ledger domain types, validation rules and the error
// taxonomy shared by every other package.
//
// This file parses and checks currency amounts. Amounts are whole rupees held
// in int64; the group never records fractional units.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultMaxAmount bounds any single amount accepted from users.
const DefaultMaxAmount int64 = 10000000

// CheckAmount validates an already-typed amount.
func CheckAmount(field string, v, max int64) error {
	if v < 0 {
		return Invalid("%s cannot be negative", field)
	}
	if max > 0 && v > max {
		return Invalid("%s exceeds the allowed limit (%d)", field, max)
	}
	return nil
}

// AmountFromFloat converts a JSON number into a whole amount.
func AmountFromFloat(field string, f float64, max int64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, Invalid("%s must be a finite number", field)
	}
	if f < 0 {
		return 0, Invalid("%s cannot be negative", field)
	}
	if f != math.Trunc(f) {
		return 0, Invalid("%s must be a whole amount", field)
	}
	if f > float64(math.MaxInt64/2) {
		return 0, Invalid("%s exceeds the allowed limit (%d)", field, max)
	}
	v := int64(f)
	return v, CheckAmount(field, v, max)
}

// ParseAmount reads a spreadsheet or form cell. It accepts grouping commas
// ("1,00,000"), surrounding spaces and a trailing ".0"; blank cells are zero.
func ParseAmount(field, s string, max int64) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || s == "-" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, Invalid("%s must be a finite number", field)
	}
	if d.IsNegative() {
		return 0, Invalid("%s cannot be negative", field)
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, Invalid("%s must be a whole amount", field)
	}
	if max > 0 && d.GreaterThan(decimal.NewFromInt(max)) {
		return 0, Invalid("%s exceeds the allowed limit (%d)", field, max)
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, Invalid("%s exceeds the allowed limit (%d)", field, max)
	}
	return d.IntPart(), nil
}
