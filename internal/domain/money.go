package domain

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// rangeSeparator joins the two ends of a formatted money range.
const rangeSeparator = " – "

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders a dollar amount rounded to whole dollars with digit
// grouping, e.g. 19200 -> "$19,200".
func FormatMoney(v float64) string {
	return moneyPrinter.Sprintf("$%d", int64(math.Round(v)))
}

// FormatMoneyRange renders "$low – $high".
func FormatMoneyRange(low, high float64) string {
	return FormatMoney(low) + rangeSeparator + FormatMoney(high)
}

// ParseMoney parses "$350,000", "350000" or "350,000.50". Empty, negative
// and unparseable input return false.
func ParseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseMoneyRangeMidpoint returns the midpoint of a "$low – $high" range.
// Both en dash and hyphen separators are accepted; a single amount is its
// own midpoint.
func ParseMoneyRangeMidpoint(s string) (float64, bool) {
	var parts []string
	switch {
	case strings.Contains(s, "–"):
		parts = strings.SplitN(s, "–", 2)
	case strings.Contains(s, "-"):
		parts = strings.SplitN(s, "-", 2)
	default:
		return ParseMoney(s)
	}

	low, okLow := ParseMoney(parts[0])
	high, okHigh := ParseMoney(parts[1])
	if !okLow || !okHigh {
		return 0, false
	}
	return (low + high) / 2, true
}
