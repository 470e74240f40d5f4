// Package core holds the domain model and the summary aggregation.
//
// Money is kept in integer cents so that sums are exact and independent of
// accumulation order.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is a non-negative magnitude in cents. The sign of a transaction lives
// in its TxType, never in the amount itself.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Yuan returns the amount as a float64 for display purposes only.
// Calculations always stay in cents.
func (m Money) Yuan() float64 {
	return float64(m.Cents) / 100.0
}

// ParseAmountCents converts the creation form's amount text to cents.
//
// Malformed or negative input coerces to 0 rather than failing: the form
// blocks submission until the amount text parses, so anything that slips
// past is stored as a zero-amount transaction by policy. It accepts both
// dot (12.34) and comma (12,34) decimal separators, with half-up rounding
// on the third decimal place.
func ParseAmountCents(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents
}
