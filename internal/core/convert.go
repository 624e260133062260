package core

// convert.go turns spreadsheet cell text into decimals and back.
//
// Input is lenient about the artifacts spreadsheets leave behind:
//   - Currency symbols and thousands separators in numbers
//   - Accounting format for negatives "(123.45)"
//   - Excel formula prefixes (="value")
//
// Output is always canonical: plain decimal notation, no exponent, no
// thousands separators, no leading '+', and the fewest decimal places that
// represent the value exactly ("25.50" is written "25.5", "10.0" is "10").

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var (
	errInvalidNumber = errors.New("invalid number format")
	errNegative      = errors.New("must not be negative")
	errOutOfRange    = errors.New("number out of range")
)

// Accepted magnitude of a cell value: at most maxIntegerDigits digits before
// the point and maxFractionDigits significant digits after it.
const (
	maxIntegerDigits     = 15
	maxFractionDigits    = 20
	maxCoefficientDigits = 40
)

// ParseDecimal parses a cell as a decimal number.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = CleanCell(s)
	if s == "" {
		return decimal.Decimal{}, errInvalidNumber
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if !numericRegex.MatchString(s) {
		return decimal.Decimal{}, errInvalidNumber
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errInvalidNumber
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}
	if !inRange(d) {
		return decimal.Decimal{}, errOutOfRange
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// inRange reports whether d fits the accepted magnitude. The exponent is
// checked before the coefficient is looked at, so "1e400000000" is refused
// without being expanded.
func inRange(d decimal.Decimal) bool {
	exp := int(d.Exponent())
	if exp > maxIntegerDigits || exp < -maxCoefficientDigits {
		return false
	}
	digits := d.Coefficient().String()
	digits = strings.TrimLeft(digits, "-")
	if len(digits) > maxCoefficientDigits {
		return false
	}
	// trailing zeros after the point carry no value
	for exp < 0 && len(digits) > 1 && digits[len(digits)-1] == '0' {
		digits = digits[:len(digits)-1]
		exp++
	}
	return len(digits)+exp <= maxIntegerDigits && exp >= -maxFractionDigits
}

// ParseNonNegative parses a cell as a decimal that must be >= 0.
func ParseNonNegative(s string) (decimal.Decimal, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return d, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, errNegative
	}
	return d, nil
}

// FormatDecimal renders d in canonical form.
func FormatDecimal(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	return d.String()
}

// FormatNullDecimal renders d in canonical form, or "" when not valid.
func FormatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return FormatDecimal(d.Decimal)
}

// HeaderIndex maps normalized column names to their position in a row.
type HeaderIndex map[string]int

// normalizeName lowercases a column or enum name and reads spaces and
// hyphens as underscores: "Estimated Unit Rate" -> "estimated_unit_rate".
func normalizeName(s string) string {
	s = strings.ToLower(CleanCell(s))
	s = strings.Join(strings.Fields(s), "_")
	return strings.ReplaceAll(s, "-", "_")
}

// CleanCell trims whitespace and removes the Excel formula wrapper (="...").
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}
