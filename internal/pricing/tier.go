package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is a named markup preset applied uniformly to every line of a quote.
type Tier string

const (
	TierRetail Tier = "Retail"
	TierTrade  Tier = "Trade"
	TierVIP    Tier = "VIP"
	TierCustom Tier = "Custom"
)

// fallbackMarkup applies when neither the requested tier nor Retail is configured.
var fallbackMarkup = decimal.NewFromInt(60)

// Tiers lists the selectable tiers in display order.
func Tiers() []Tier {
	return []Tier{TierRetail, TierTrade, TierVIP, TierCustom}
}

// DefaultTierMarkups returns a fresh copy of the standard markup table.
func DefaultTierMarkups() map[Tier]decimal.Decimal {
	return map[Tier]decimal.Decimal{
		TierRetail: decimal.NewFromInt(60),
		TierTrade:  decimal.NewFromInt(40),
		TierVIP:    decimal.NewFromInt(25),
	}
}

// ParseTier matches s case-insensitively against the known tiers.
// Unknown names are returned verbatim so ResolveMarkup can apply its fallback.
func ParseTier(s string) Tier {
	s = strings.TrimSpace(s)
	for _, t := range Tiers() {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return Tier(s)
}

// ParseTierMarkups reads a "Retail:60,Trade:40,VIP:25" table.
func ParseTierMarkups(raw string) (map[Tier]decimal.Decimal, error) {
	table := make(map[Tier]decimal.Decimal)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("pricing: tier entry %q must be name:percent", entry)
		}
		tier := ParseTier(name)
		if tier == TierCustom || tier == "" {
			return nil, fmt.Errorf("pricing: tier %q cannot carry a fixed markup", name)
		}
		pct, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("pricing: tier %s markup: %w", tier, err)
		}
		table[tier] = pct
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("pricing: tier table is empty")
	}
	return table, nil
}

// ResolveMarkup returns the markup percent for tier. Custom uses custom;
// unknown tiers fall back to the Retail entry.
func ResolveMarkup(tier Tier, custom decimal.Decimal, table map[Tier]decimal.Decimal) decimal.Decimal {
	if tier == TierCustom {
		return custom
	}
	if m, ok := table[tier]; ok {
		return m
	}
	if m, ok := table[TierRetail]; ok {
		return m
	}
	return fallbackMarkup
}
