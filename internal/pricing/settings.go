package pricing

import "github.com/shopspring/decimal"

// Settings are the quote-global inputs to every line calculation.
type Settings struct {
	Tier           Tier
	MarkupPercent  decimal.Decimal
	WastePercent   decimal.Decimal
	LabourRate     decimal.Decimal
	LabourCostRate decimal.Decimal
	TaxRate        decimal.Decimal
	TierMarkups    map[Tier]decimal.Decimal
}

// Markup resolves the effective markup percent for these settings.
func (s Settings) Markup() decimal.Decimal {
	return ResolveMarkup(s.Tier, s.MarkupPercent, s.TierMarkups)
}

// Defaults are the business-wide values a new quote starts from.
type Defaults struct {
	TierMarkups    map[Tier]decimal.Decimal
	TaxRate        decimal.Decimal
	LabourCostRate decimal.Decimal
	LabourRate     decimal.Decimal
	WastePercent   decimal.Decimal
}

// Settings builds quote settings from the defaults and the quote's own choices.
func (d Defaults) Settings(tier Tier, markup, waste, labourRate decimal.Decimal) Settings {
	table := d.TierMarkups
	if table == nil {
		table = DefaultTierMarkups()
	}
	return Settings{
		Tier:           tier,
		MarkupPercent:  markup,
		WastePercent:   waste,
		LabourRate:     labourRate,
		LabourCostRate: d.LabourCostRate,
		TaxRate:        d.TaxRate,
		TierMarkups:    table,
	}
}
