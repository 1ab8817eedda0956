// Package core provides amount parsing and formatting utilities.
//
// Ledger amounts are signed integers in the smallest currency unit; there is
// no fractional part to round.

package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a user-entered amount to integer units.
//
// Thousands separators (comma, dot, space, underscore) are ignored and a
// leading sign is allowed.
//
// Examples:
//
//	ParseAmount("120,000") -> 120000, nil
//	ParseAmount("-5 000")  -> -5000, nil
//	ParseAmount("12a")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ',' || r == '.' || r == ' ' || r == '_':
			// grouping separator
		default:
			return 0, ErrInvalidAmount
		}
	}
	if b.Len() == 0 {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if neg {
		v = -v
	}
	return v, nil
}

// FormatAmount renders units with comma thousands separators, e.g. "-120,000".
func FormatAmount(units int64) string {
	neg := units < 0
	digits := strconv.FormatInt(units, 10)
	if neg {
		digits = digits[1:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
