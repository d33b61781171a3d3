package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal reads live form input. Thousands separators and surrounding
// whitespace are ignored; unparsable or negative input reads as zero.
func ParseDecimal(raw string) decimal.Decimal {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
