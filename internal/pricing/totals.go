package pricing

import "github.com/shopspring/decimal"

// Totals are the quote-level financial figures.
type Totals struct {
	TotalCostExTax     decimal.Decimal `json:"total_cost_ex_tax"`
	TotalSellExTax     decimal.Decimal `json:"total_sell_ex_tax"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TotalIncTax        decimal.Decimal `json:"total_inc_tax"`
	GrossProfit        decimal.Decimal `json:"gross_profit"`
	GrossProfitPercent decimal.Decimal `json:"gross_profit_percent"`
}

// Summarize aggregates every line, labour included.
func Summarize(lines []LineItem, taxRate decimal.Decimal) Totals {
	cost := decimal.Zero
	sell := decimal.Zero
	for _, l := range lines {
		cost = cost.Add(l.LineCost)
		sell = sell.Add(l.LineSell)
	}
	gp := sell.Sub(cost)
	gpPct := decimal.Zero
	if sell.IsPositive() {
		gpPct = gp.Div(sell).Mul(hundred)
	}
	tax := sell.Mul(taxRate)
	return Totals{
		TotalCostExTax:     cost.Round(currencyPlaces),
		TotalSellExTax:     sell.Round(currencyPlaces),
		TaxAmount:          tax.Round(currencyPlaces),
		TotalIncTax:        sell.Add(tax).Round(currencyPlaces),
		GrossProfit:        gp.Round(currencyPlaces),
		GrossProfitPercent: gpPct.Round(percentPlaces),
	}
}

// Section is a named group of lines.
type Section struct {
	Name  string     `json:"name"`
	Lines []LineItem `json:"lines"`
}

// Quote is the pricing view of a quote tree.
type Quote struct {
	Sections []Section `json:"sections"`
	Totals   Totals    `json:"totals"`
}

// Lines flattens every section in order.
func (q Quote) Lines() []LineItem {
	var all []LineItem
	for _, s := range q.Sections {
		all = append(all, s.Lines...)
	}
	return all
}

// RecalculateQuote recomputes every line against catalog and s, then the
// totals. Lines whose product is missing from catalog are treated as manual.
// The input is not modified and repeated calls yield identical output.
func RecalculateQuote(q Quote, catalog Catalog, s Settings) Quote {
	out := Quote{Sections: make([]Section, len(q.Sections))}
	for i, sec := range q.Sections {
		lines := make([]LineItem, len(sec.Lines))
		for j, line := range sec.Lines {
			lines[j] = RecalculateLineItem(line, Lookup(catalog, line), s)
		}
		out.Sections[i] = Section{Name: sec.Name, Lines: lines}
	}
	out.Totals = Summarize(out.Lines(), s.TaxRate)
	return out
}

// Lookup resolves the product of a non-labour line, or nil for manual lines.
func Lookup(catalog Catalog, line LineItem) *Product {
	if catalog == nil || line.IsLabour || line.ProductID == nil {
		return nil
	}
	p, ok := catalog.Product(*line.ProductID)
	if !ok {
		return nil
	}
	return &p
}
