// Package core provides money parsing and handling utilities.
//
// Amounts travel over the wire as JSON numbers in euros but are kept as
// integer cents so that sums over a collection are exact.
package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

type Money struct {
	Cents int64
}

var ErrInvalidAmount = errors.New("invalid amount")

// Euros builds a Money value from a euro amount, rounding half away from zero.
// Amounts beyond the int64 cent range, NaN and infinities are rejected.
func Euros(v float64) (Money, error) {
	cents := math.Round(v * 100)
	if math.IsNaN(cents) || cents >= math.MaxInt64 || cents <= math.MinInt64 {
		return Money{}, fmt.Errorf("%w: %g out of range", ErrInvalidAmount, v)
	}
	return Money{Cents: int64(cents)}, nil
}

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts dot (12.34) and comma (12,34) decimal separators as well as German
// thousands grouping (1.234,56). When both separators appear, the last one is the
// decimal separator. A lone dot followed by exactly three digits is German grouping
// (1.234 is 1234 euros) unless the integer part is zero. A leading minus is allowed
// for credit notes. The third decimal place is rounded half-up.
//
// Examples:
//
//	ParseDecimalToCents("12.34")    -> 1234, nil
//	ParseDecimalToCents("12,34")    -> 1234, nil
//	ParseDecimalToCents("1.234,56") -> 123456, nil
//	ParseDecimalToCents("1.234")    -> 123400, nil
//	ParseDecimalToCents("12,346")   -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "€")
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
	s = normalizeSeparators(s)
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64-1 {
		return 0, ErrInvalidAmount
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
	cents := iv*100 + fracCents
	if neg {
		cents = -cents
	}
	return cents, nil
}

// normalizeSeparators rewrites the string so that "." is the only decimal separator
// and grouping separators are removed.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	case lastDot > 0 && len(s)-lastDot-1 == 3 && strings.Trim(s[:lastDot], "0") != "":
		return s[:lastDot] + s[lastDot+1:]
	}
	return s
}

// Euros returns the euro value as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// Decimal renders the amount as a plain decimal string ("1234.50").
func (m Money) Decimal() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// String formats the amount the way German invoices do ("1.234,56 €").
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%s%s,%02d €", sign, grouped.String(), cents%100)
}

// MarshalJSON encodes the amount as a JSON number in euros.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal()), nil
}

// UnmarshalJSON accepts a JSON number, or a numeric string as some clients send.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(s); err == nil {
		cents, err := ParseDecimalToCents(unquoted)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidAmount, unquoted)
		}
		m.Cents = cents
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	parsed, err := Euros(f)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
