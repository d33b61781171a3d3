package quotes

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ExportConfig carries the business details printed on exported quotes.
type ExportConfig struct {
	BusinessName string
	Currency     string
	Locale       string
	TaxRate      decimal.Decimal
	TaxLabel     string
}

// Exporter renders quotes as client PDFs and internal costing workbooks.
type Exporter struct {
	cfg   ExportConfig
	money *Money
}

// NewExporter builds an exporter, falling back to en-NZ / NZD on bad settings.
func NewExporter(cfg ExportConfig) *Exporter {
	if cfg.TaxLabel == "" {
		cfg.TaxLabel = "GST"
	}
	return &Exporter{cfg: cfg, money: NewMoney(cfg.Locale, cfg.Currency)}
}

// Money formats decimal amounts for one locale and currency.
type Money struct {
	printer *message.Printer
	symbol  string
}

// NewMoney resolves the locale and ISO currency code.
func NewMoney(locale, code string) *Money {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse("en-NZ")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.NZD
	}
	p := message.NewPrinter(tag)
	return &Money{printer: p, symbol: p.Sprint(currency.NarrowSymbol(unit))}
}

// Format renders an amount with two decimals and the currency symbol.
func (m *Money) Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + m.symbol + m.printer.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

// Percent renders a percentage with one decimal.
func (m *Money) Percent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

// FileName is the download name for an export.
func FileName(q Quote, ext string) string {
	name := q.DocNumber
	if name == "" {
		name = fmt.Sprintf("quote-%d", q.ID)
	}
	return name + "." + ext
}

// RenderPDF produces the client-facing quote. Costs and margins are omitted.
func (e *Exporter) RenderPDF(q Quote) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(12).
		WithTopMargin(12).
		WithRightMargin(12).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   &props.Color{Red: 120, Green: 120, Blue: 120},
		}).
		Build()

	m := maroto.New(cfg)
	e.pdfHeader(m, q)
	for _, s := range q.Sections {
		e.pdfSection(m, s)
	}
	e.pdfTotals(m, q)
	if q.Notes != "" {
		m.AddRows(row.New(6))
		m.AddRows(row.New(12).Add(col.New(12).Add(text.New(q.Notes, props.Text{Size: 8}))))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func (e *Exporter) pdfHeader(m core.Maroto, q Quote) {
	grey := &props.Color{Red: 80, Green: 80, Blue: 80}
	m.AddRows(
		row.New(12).Add(
			col.New(8).Add(text.New(e.cfg.BusinessName, props.Text{Size: 16, Style: fontstyle.Bold})),
			col.New(4).Add(text.New("QUOTE", props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Right})),
		),
		row.New(6).Add(
			col.New(6).Add(text.New("Client: "+q.ClientName, props.Text{Size: 9, Color: grey})),
			col.New(6).Add(text.New("Quote: "+q.DocNumber, props.Text{Size: 9, Align: align.Right, Color: grey})),
		),
		row.New(6).Add(
			col.New(6).Add(text.New("Site: "+q.SiteAddress, props.Text{Size: 9, Color: grey})),
			col.New(6).Add(text.New("Valid until: "+q.ValidUntil.Format("2 Jan 2006"), props.Text{Size: 9, Align: align.Right, Color: grey})),
		),
		row.New(4),
	)
}

func (e *Exporter) pdfSection(m core.Maroto, s Section) {
	bg := hexColor(s.Color)
	white := &props.Color{Red: 255, Green: 255, Blue: 255}
	head := props.Text{Size: 9, Style: fontstyle.Bold, Color: white, Left: 2}
	m.AddRows(row.New(7).Add(col.New(12).Add(text.New(s.Name, head)).WithStyle(&props.Cell{BackgroundColor: bg})))

	label := props.Text{Size: 7, Style: fontstyle.Bold, Align: align.Right}
	m.AddRows(row.New(6).Add(
		col.New(8).Add(text.New("Description", props.Text{Size: 7, Style: fontstyle.Bold})),
		col.New(2).Add(text.New("Area (m2)", label)),
		col.New(2).Add(text.New("Amount", label)),
	))
	for _, l := range s.Lines {
		right := props.Text{Size: 8, Align: align.Right}
		m.AddRows(row.New(6).Add(
			col.New(8).Add(text.New(l.Description, props.Text{Size: 8})),
			col.New(2).Add(text.New(l.Area.StringFixed(2), right)),
			col.New(2).Add(text.New(e.money.Format(l.LineSell), right)),
		))
	}
	m.AddRows(row.New(3))
}

func (e *Exporter) pdfTotals(m core.Maroto, q Quote) {
	cell := &props.Cell{BackgroundColor: &props.Color{Red: 240, Green: 240, Blue: 240}}
	label := props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}
	taxLabel := fmt.Sprintf("%s (%s%%)", e.cfg.TaxLabel, e.cfg.TaxRate.Mul(decimal.NewFromInt(100)).String())
	lines := []struct {
		label string
		value decimal.Decimal
	}{
		{"Subtotal (ex " + e.cfg.TaxLabel + ")", q.Totals.TotalSellExTax},
		{taxLabel, q.Totals.TaxAmount},
		{"Total (inc " + e.cfg.TaxLabel + ")", q.Totals.TotalIncTax},
	}
	m.AddRows(row.New(4))
	for _, t := range lines {
		m.AddRows(row.New(7).Add(
			col.New(8).Add(text.New(t.label, label)).WithStyle(cell),
			col.New(4).Add(text.New(e.money.Format(t.value), label)).WithStyle(cell),
		))
	}
}

var costingColumns = []struct {
	header string
	width  float64
}{
	{"Section", 18},
	{"Description", 40},
	{"Area (m2)", 11},
	{"Packs", 8},
	{"Labour", 8},
	{"Cost", 14},
	{"Sell", 14},
	{"Margin %", 10},
}

// RenderXLSX produces the internal costing workbook with cost, sell and margin per line.
func (e *Exporter) RenderXLSX(q Quote) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := q.DocNumber
	if sheet == "" {
		sheet = "Quote"
	}
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create bold style: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#212529"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}

	set := func(cell string, v any) {
		_ = f.SetCellValue(sheet, cell, v)
	}
	set("A1", e.cfg.BusinessName+" costing")
	set("A2", "Quote")
	set("B2", q.DocNumber)
	set("A3", "Client")
	set("B3", sanitizeCell(q.ClientName))
	set("A4", "Tier")
	set("B4", string(q.PricingTier))
	set("C4", "Markup %")
	set("D4", q.MarkupPercent.InexactFloat64())
	set("E4", "Waste %")
	set("F4", q.WastePercent.InexactFloat64())
	_ = f.SetCellStyle(sheet, "A1", "A4", bold)

	const first = 6
	for i, c := range costingColumns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", name, err)
		}
		set(name+strconv.Itoa(first), c.header)
	}
	_ = f.SetCellStyle(sheet, "A"+strconv.Itoa(first), "H"+strconv.Itoa(first), header)

	r := first + 1
	for _, s := range q.Sections {
		for _, l := range s.Lines {
			n := strconv.Itoa(r)
			set("A"+n, sanitizeCell(s.Name))
			set("B"+n, sanitizeCell(l.Description))
			set("C"+n, l.Area.InexactFloat64())
			set("D"+n, l.PacksRequired)
			set("E"+n, yesNo(l.IsLabour))
			set("F"+n, l.LineCost.InexactFloat64())
			set("G"+n, l.LineSell.InexactFloat64())
			set("H"+n, l.MarginPercent.InexactFloat64())
			r++
		}
	}
	if r > first+1 {
		_ = f.SetCellStyle(sheet, "F"+strconv.Itoa(first+1), "G"+strconv.Itoa(r-1), money)
	}

	r++
	summary := []struct {
		label string
		value decimal.Decimal
	}{
		{"Total cost (ex " + e.cfg.TaxLabel + ")", q.Totals.TotalCostExTax},
		{"Total sell (ex " + e.cfg.TaxLabel + ")", q.Totals.TotalSellExTax},
		{e.cfg.TaxLabel, q.Totals.TaxAmount},
		{"Total (inc " + e.cfg.TaxLabel + ")", q.Totals.TotalIncTax},
		{"Gross profit", q.Totals.GrossProfit},
		{"Gross profit %", q.Totals.GrossProfitPercent},
	}
	for _, s := range summary {
		n := strconv.Itoa(r)
		set("F"+n, s.label)
		set("G"+n, s.value.InexactFloat64())
		_ = f.SetCellStyle(sheet, "F"+n, "F"+n, bold)
		r++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// sanitizeCell stops user text being read as a spreadsheet formula.
func sanitizeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

func hexColor(hex string) *props.Color {
	fallback := &props.Color{Red: 100, Green: 116, Blue: 139}
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return &props.Color{Red: int(v >> 16 & 0xff), Green: int(v >> 8 & 0xff), Blue: int(v & 0xff)}
}
