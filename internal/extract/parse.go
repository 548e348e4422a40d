package extract

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var monthNames = map[string]int{
	"enero":      1,
	"febrero":    2,
	"marzo":      3,
	"abril":      4,
	"mayo":       5,
	"junio":      6,
	"julio":      7,
	"agosto":     8,
	"septiembre": 9,
	"setiembre":  9,
	"octubre":    10,
	"noviembre":  11,
	"diciembre":  12,
}

// ParseAmount parses a Chilean-formatted amount: "." is a thousands
// separator and "," the decimal mark. A leading "$" and surrounding spaces
// are ignored. It reports false when the text is not a number.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return decimal.Decimal{}, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseMonth maps a Spanish month name or a numeric month to 1-12.
func ParseMonth(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m, ok := monthNames[s]; ok {
		return m, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 12 {
		return 0, false
	}
	return n, true
}

func cleanCapture(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'“”«»`)
	return strings.TrimSpace(s)
}
