// Package pricing converts line-item inputs into billable quantities and
// aggregates them into quote totals. Everything here is pure: no I/O and no
// errors; degenerate input produces a defined number.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	one      = decimal.NewFromInt(1)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// MaxArea is the largest area a line can hold. Larger inputs are capped.
var MaxArea = decimal.RequireFromString("999999999.999")

const (
	currencyPlaces = 2
	percentPlaces  = 1
	areaPlaces     = 3
)

// Product is the catalog data the calculator needs.
type Product struct {
	ID          int64
	Description string
	PackPrice   decimal.Decimal
	PackSize    decimal.Decimal
	IsLabour    bool
}

// Catalog looks products up by id.
type Catalog interface {
	Product(id int64) (Product, bool)
}

// CatalogMap is an in-memory Catalog.
type CatalogMap map[int64]Product

// Product implements Catalog.
func (m CatalogMap) Product(id int64) (Product, bool) {
	p, ok := m[id]
	return p, ok
}

// LineItem carries the entered inputs and the resolved outputs of one quote line.
type LineItem struct {
	ProductID     *int64          `json:"product_id,omitempty"`
	Description   string          `json:"description"`
	Area          decimal.Decimal `json:"area"`
	PacksRequired int64           `json:"packs_required"`
	LineCost      decimal.Decimal `json:"line_cost"`
	LineSell      decimal.Decimal `json:"line_sell"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	IsLabour      bool            `json:"is_labour"`
}

// RecalculateLineItem re-derives packs, cost, sell and margin for one line.
//
// Labour lines are priced from the labour rates. Lines without a product are
// manual entries: their cost and sell are kept and only the margin is derived.
func RecalculateLineItem(item LineItem, product *Product, s Settings) LineItem {
	area := NormalizeArea(item.Area)
	item.Area = area

	switch {
	case item.IsLabour:
		cost := area.Mul(s.LabourCostRate)
		sell := area.Mul(s.LabourRate)
		item.PacksRequired = 0
		item.ProductID = nil
		return withMoney(item, cost, sell)
	case product == nil:
		item.PacksRequired = 0
		return withMoney(item, item.LineCost, item.LineSell)
	}

	packs := PacksRequired(area, s.WastePercent, product.PackSize)
	cost := decimal.NewFromInt(packs).Mul(product.PackPrice)
	sell := cost.Mul(one.Add(s.Markup().Div(hundred)))

	item.PacksRequired = packs
	return withMoney(item, cost, sell)
}

// NormalizeArea rounds area to 3 places and clamps it to [0, MaxArea].
func NormalizeArea(area decimal.Decimal) decimal.Decimal {
	area = area.Round(areaPlaces)
	switch {
	case area.IsNegative():
		return decimal.Zero
	case area.GreaterThan(MaxArea):
		return MaxArea
	}
	return area
}

// PacksRequired is ceil(area * (1 + waste/100) / packSize). A pack size of
// zero or less counts as one area unit per pack. Area is normalized first
// and the result saturates at math.MaxInt64.
func PacksRequired(area, wastePercent, packSize decimal.Decimal) int64 {
	if !packSize.IsPositive() {
		packSize = one
	}
	area = NormalizeArea(area)
	if !area.IsPositive() {
		return 0
	}
	withWaste := area.Mul(one.Add(wastePercent.Div(hundred)))
	packs := withWaste.Div(packSize).Ceil()
	switch {
	case packs.IsNegative():
		return 0
	case packs.GreaterThan(maxInt64):
		return math.MaxInt64
	}
	return packs.IntPart()
}

// MarginPercent is gross profit on sell: (sell-cost)/sell*100, or 0 when sell is 0.
func MarginPercent(cost, sell decimal.Decimal) decimal.Decimal {
	if sell.IsZero() {
		return decimal.Zero
	}
	return sell.Sub(cost).Div(sell).Mul(hundred)
}

// withMoney rounds once, at output, from unrounded cost and sell.
func withMoney(item LineItem, cost, sell decimal.Decimal) LineItem {
	item.LineCost = cost.Round(currencyPlaces)
	item.LineSell = sell.Round(currencyPlaces)
	item.MarginPercent = MarginPercent(cost, sell).Round(percentPlaces)
	return item
}
