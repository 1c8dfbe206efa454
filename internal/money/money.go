package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents represents a monetary value stored in minor units.
type Cents = int64

// centsThreshold is the smallest bare integer treated as already being cents.
const centsThreshold = 1000

var hundred = decimal.NewFromInt(100)

// Input is a monetary value whose unit is known at the API boundary.
type Input interface {
	Cents() Cents
}

// CentsInput carries a value that is already expressed in cents.
type CentsInput int64

// Cents implements Input.
func (c CentsInput) Cents() Cents { return Cents(c) }

// DollarsInput carries a user-typed dollar string such as "12.50" or "$12".
type DollarsInput string

// Cents implements Input. Unparseable input yields zero.
func (d DollarsInput) Cents() Cents {
	c, ok := ParseDollars(string(d))
	if !ok {
		return 0
	}
	return c
}

// ParseDollars parses a dollar amount, tolerating currency symbols, thousands
// separators and whitespace, and returns the value rounded to whole cents.
func ParseDollars(value string) (Cents, bool) {
	cleaned := stripCurrency(value)
	if cleaned == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	return d.Mul(hundred).Round(0).IntPart(), true
}

// Coerce converts a loosely formatted amount into cents.
//
// A value containing a decimal point or currency symbol is read as dollars. A
// bare integer of 1000 or more is taken to be cents already, and a smaller bare
// integer is read as dollars. Anything unparseable becomes zero. Prefer
// CentsInput or DollarsInput when the unit is known.
func Coerce(value string) Cents {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	if strings.ContainsAny(trimmed, ".$") {
		c, _ := ParseDollars(trimmed)
		return c
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", ""), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return CoerceNumber(n)
}

// CoerceNumber applies the same heuristic as Coerce to a numeric value.
func CoerceNumber(n float64) Cents {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	if n >= centsThreshold {
		return Cents(math.Round(n))
	}
	return FromDollars(n)
}

// FromDollars converts a floating dollar amount to cents.
func FromDollars(d float64) Cents {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return decimal.NewFromFloat(d).Mul(hundred).Round(0).IntPart()
}

// ToDollars converts cents to a floating dollar amount for display.
func ToDollars(c Cents) float64 {
	return decimal.New(c, -2).InexactFloat64()
}

// Format renders cents as "$X.XX". Negative values keep a leading minus sign.
func Format(c Cents) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}

// ParseQty parses a quantity string, returning zero when it is not a number.
func ParseQty(value string) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err == nil {
		return n
	}
	// Match a lenient integer parse: take the leading integer part of "2.5" or "3 stems".
	end := 0
	for end < len(trimmed) && (trimmed[end] >= '0' && trimmed[end] <= '9' || end == 0 && trimmed[end] == '-') {
		end++
	}
	n, err = strconv.ParseInt(trimmed[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	return decimal.NewFromFloat(v).Round(int32(precision)).InexactFloat64()
}

// RoundRatio returns round(amount × num / den) using exact decimal arithmetic.
// A zero denominator yields zero.
func RoundRatio(amount, num, den Cents) Cents {
	if den == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(decimal.NewFromInt(num)).Div(decimal.NewFromInt(den)).Round(0).IntPart()
}

// ApplyRate returns round(amount × rate) where rate is a fraction such as 0.05.
func ApplyRate(amount Cents, rate float64) Cents {
	if rate == 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(decimal.NewFromFloat(rate)).Round(0).IntPart()
}

func stripCurrency(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == '$', r == ',', r == ' ':
		default:
			return ""
		}
	}
	return b.String()
}
