package quotes

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/thermaquote/thermaquote/internal/pricing"
)

func exportFixture() Quote {
	line := func(desc, area, cost, sell string, packs int64, labour bool) LineItem {
		return LineItem{LineItem: pricing.LineItem{
			Description:   desc,
			Area:          dec(area),
			PacksRequired: packs,
			LineCost:      dec(cost),
			LineSell:      dec(sell),
			MarginPercent: pricing.MarginPercent(dec(cost), dec(sell)).Round(1),
			IsLabour:      labour,
		}}
	}
	return Quote{
		ID:          3,
		DocNumber:   "Q-2503-0003",
		ClientName:  "=HYPERLINK(\"x\")",
		SiteAddress: "12 Wharf Rd",
		Status:      StatusSent,
		ValidUntil:  time.Date(2025, 4, 13, 0, 0, 0, 0, time.UTC),
		PricingTier: pricing.TierRetail,
		Sections: []Section{
			{Name: "Ceiling", Color: "#0ea5e9", Lines: []LineItem{
				line("R3.6 ceiling batts", "20", "600", "960", 5, false),
				line("Installation labour", "20", "40", "60", 0, true),
			}},
		},
		Totals: pricing.Summarize([]pricing.LineItem{
			{LineCost: dec("600"), LineSell: dec("960")},
			{LineCost: dec("40"), LineSell: dec("60")},
		}, dec("0.15")),
	}
}

func TestMoneyFormat(t *testing.T) {
	m := NewMoney("en-NZ", "NZD")
	assert.Equal(t, "$1,155.75", m.Format(dec("1155.75")))
	assert.Equal(t, "$0.50", m.Format(dec("0.5")))
	assert.Equal(t, "-$12.00", m.Format(dec("-12")))
	assert.Equal(t, "35.8%", m.Percent(dec("35.82")))

	fallback := NewMoney("???", "???")
	assert.Equal(t, "$10.00", fallback.Format(dec("10")))
}

func TestRenderPDF(t *testing.T) {
	e := NewExporter(ExportConfig{BusinessName: "Test Insulation", Currency: "NZD", Locale: "en-NZ", TaxRate: dec("0.15")})
	out, err := e.RenderPDF(exportFixture())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderXLSX(t *testing.T) {
	e := NewExporter(ExportConfig{BusinessName: "Test Insulation", Currency: "NZD", Locale: "en-NZ", TaxRate: dec("0.15")})
	out, err := e.RenderXLSX(exportFixture())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetList()[0]
	assert.Equal(t, "Q-2503-0003", sheet)

	client, _ := f.GetCellValue(sheet, "B3")
	assert.Equal(t, "'=HYPERLINK(\"x\")", client)
	header, _ := f.GetCellValue(sheet, "F6")
	assert.Equal(t, "Cost", header)
	desc, _ := f.GetCellValue(sheet, "B7")
	assert.Equal(t, "R3.6 ceiling batts", desc)
	labour, _ := f.GetCellValue(sheet, "E8")
	assert.Equal(t, "yes", labour)
	gpLabel, _ := f.GetCellValue(sheet, "F14")
	assert.Equal(t, "Gross profit", gpLabel)
}

func TestHexColor(t *testing.T) {
	c := hexColor("#0ea5e9")
	assert.Equal(t, 14, c.Red)
	assert.Equal(t, 165, c.Green)
	assert.Equal(t, 233, c.Blue)
	assert.Equal(t, hexColor("#fff").Red, 255)
	assert.Equal(t, 100, hexColor("teal").Red)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Q-2503-0003.pdf", FileName(Quote{DocNumber: "Q-2503-0003"}, "pdf"))
	assert.Equal(t, "quote-4.xlsx", FileName(Quote{ID: 4}, "xlsx"))
}
