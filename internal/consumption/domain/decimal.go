package domain

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// decimalCtx is shared by all arithmetic. 34 digits matches IEEE 754
// decimal128 and is far beyond what hourly kWh sums ever need.
var decimalCtx = apd.BaseContext.WithPrecision(34)

// Decimal is a full-precision decimal value. Running sums are carried in
// Decimal so that summation error cannot accumulate across unbounded
// import history.
type Decimal struct {
	value apd.Decimal
}

// ParseDecimal parses a decimal from its textual form.
func ParseDecimal(s string) (Decimal, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{value: d}, nil
}

// DecimalZero returns the zero value explicitly.
func DecimalZero() Decimal {
	return Decimal{}
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) Decimal {
	var result apd.Decimal
	_, _ = decimalCtx.Add(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Cmp returns -1, 0 or 1 comparing d against other.
func (d Decimal) Cmp(other Decimal) int {
	return d.value.Cmp(&other.value)
}

// Negative reports whether d < 0.
func (d Decimal) Negative() bool {
	return d.value.Negative && !d.value.IsZero()
}

// IsZero reports whether d == 0.
func (d Decimal) IsZero() bool {
	return d.value.IsZero()
}

// Float64 returns the nearest float64, for display only.
func (d Decimal) Float64() float64 {
	f, _ := d.value.Float64()
	return f
}

func (d Decimal) String() string {
	return d.value.String()
}
