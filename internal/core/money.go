// Package core provides money parsing and handling utilities.
//
// Ledger amounts are decimals in the major currency unit (rupees). Payment
// gateways report minor units (paise), which are converted on the way in.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerMajor is the number of paise in a rupee.
const MinorUnitsPerMajor = 100

// ParseAmount converts a decimal string to an amount rounded half-up to two places.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rejects
// signs, exponents, and anything that is not a plain decimal. Zero is accepted;
// callers that need a positive amount check for it themselves.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrMissingAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if s == "." {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// FromMinorUnits converts paise to rupees.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// ToMinorUnits converts rupees to paise, rounding half-up.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(MinorUnitsPerMajor)).Round(0).IntPart()
}
