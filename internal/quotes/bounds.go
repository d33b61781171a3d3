package quotes

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/pricing"
)

// Column limits of the quotes and quote_lines tables.
var (
	maxPercentInput = decimal.RequireFromString("9999.99")
	maxRate         = decimal.RequireFromString("99999999.99")
	maxMoney        = decimal.RequireFromString("999999999999.99")
	maxPercent      = decimal.RequireFromString("99999.9")
)

func outOfRange(d, limit decimal.Decimal) bool {
	return d.Abs().GreaterThan(limit)
}

func checkSettings(markup, waste, labour decimal.Decimal) error {
	fields := map[string]string{}
	if outOfRange(markup, maxPercentInput) {
		fields["markup_percent"] = "must be at most " + maxPercentInput.String()
	}
	if outOfRange(waste, maxPercentInput) {
		fields["waste_percent"] = "must be at most " + maxPercentInput.String()
	}
	if outOfRange(labour, maxRate) {
		fields["labour_rate"] = "must be at most " + maxRate.String()
	}
	if len(fields) > 0 {
		return &httpx.ValidationError{Fields: fields}
	}
	return nil
}

func checkAreas(sections []SectionRequest) error {
	fields := map[string]string{}
	for i, sec := range sections {
		for j, l := range sec.Lines {
			if l.Area.GreaterThan(pricing.MaxArea) {
				fields[fmt.Sprintf("sections.%d.lines.%d.area", i, j)] = "must be at most " + pricing.MaxArea.String()
			}
		}
	}
	if len(fields) > 0 {
		return &httpx.ValidationError{Fields: fields}
	}
	return nil
}

// checkPriced rejects a priced quote whose figures do not fit storage.
func checkPriced(q Quote) error {
	fields := map[string]string{}
	for i, sec := range q.Sections {
		for j, l := range sec.Lines {
			key := fmt.Sprintf("sections.%d.lines.%d.", i, j)
			if outOfRange(l.LineCost, maxMoney) {
				fields[key+"line_cost"] = "is too large"
			}
			if outOfRange(l.LineSell, maxMoney) {
				fields[key+"line_sell"] = "is too large"
			}
			if outOfRange(l.MarginPercent, maxPercent) {
				fields[key+"margin_percent"] = "is out of range; check the labour rate and markup"
			}
		}
	}
	t := q.Totals
	for name, v := range map[string]decimal.Decimal{
		"total_cost_ex_tax": t.TotalCostExTax,
		"total_sell_ex_tax": t.TotalSellExTax,
		"tax_amount":        t.TaxAmount,
		"total_inc_tax":     t.TotalIncTax,
		"gross_profit":      t.GrossProfit,
	} {
		if outOfRange(v, maxMoney) {
			fields["totals."+name] = "is too large"
		}
	}
	if outOfRange(t.GrossProfitPercent, maxPercent) {
		fields["totals.gross_profit_percent"] = "is out of range; check the labour rate and markup"
	}
	if len(fields) > 0 {
		return &httpx.ValidationError{Fields: fields}
	}
	return nil
}
