package document

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatAmount renders a peso amount in Chilean style: "$1.234.567" or
// "$1.234,50" when there are cents.
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	if d.Equal(d.Truncate(0)) {
		return "$" + humanize.FormatFloat("#.###,", f)
	}
	return "$" + humanize.FormatFloat("#.###,##", f)
}

// FormatAmountPtr formats d or returns "-" when unset.
func FormatAmountPtr(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return FormatAmount(*d)
}

// MonthName returns the Spanish name of month m (1-12).
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("mes %d", m)
	}
	return monthNames[m-1]
}
