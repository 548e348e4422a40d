package extract

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/dustin/go-humanize"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// Validation is idempotent and its confidence stays within 0-100.
func TestValidateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	x := newTestExtractor()

	properties.Property("validate is idempotent", prop.ForAll(
		func(text string) bool {
			e := x.Extract(text)
			return reflect.DeepEqual(Validate(e), Validate(e))
		},
		gen.AnyString(),
	))

	properties.Property("confidence is bounded", prop.ForAll(
		func(cliente, producto, medio string) bool {
			e := x.Extract(fmt.Sprintf("orden para %s con producto %s por %s", cliente, producto, medio))
			c := Validate(e).Confidence
			return c >= 0 && c <= 100
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// Amounts formatted with "." thousands and "," decimals parse back exactly.
func TestParseAmountRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("integer amounts round trip", prop.ForAll(
		func(n int64) bool {
			d, ok := ParseAmount(humanize.FormatInteger("#.###,", int(n)))
			return ok && d.Equal(decimal.NewFromInt(n))
		},
		gen.Int64Range(0, 1_000_000_000_000),
	))

	properties.Property("amounts with cents round trip", prop.ForAll(
		func(n int64, cents int64) bool {
			text := fmt.Sprintf("%s,%02d", humanize.FormatInteger("#.###,", int(n)), cents)
			d, ok := ParseAmount(text)
			want := decimal.NewFromInt(n).Add(decimal.New(cents, -2))
			return ok && d.Equal(want)
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(0, 99),
	))

	properties.TestingRun(t)
}
