package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/thermaquote/thermaquote/internal/pricing"
)

const defaultColor = "#64748b"

// ErrEmptyFile is returned for uploads with no data rows.
var ErrEmptyFile = errors.New("input file is empty")

// ImportRow is one parsed spreadsheet product.
type ImportRow struct {
	Row             int
	SKU             string
	Description     string
	CostPrice       decimal.Decimal
	PackPrice       decimal.Decimal
	PackSize        decimal.Decimal
	WastePercent    decimal.Decimal
	ApplicationType string
	IsLabour        bool
	IsActive        bool
}

var headerAliases = map[string][]string{
	"sku":              {"sku", "code", "product code", "item code"},
	"description":      {"description", "name", "product", "product name"},
	"cost_price":       {"cost_price", "cost", "cost price", "unit cost"},
	"pack_price":       {"pack_price", "pack price", "price", "sell price"},
	"pack_size":        {"pack_size", "pack size", "coverage", "m2 per pack", "area per pack"},
	"waste_percent":    {"waste_percent", "waste", "waste %", "waste percent"},
	"application_type": {"application_type", "application", "application type", "category"},
	"is_labour":        {"is_labour", "labour", "is labour"},
	"is_active":        {"is_active", "active", "is active"},
}

// ParseProductRows reads an .xlsx or .csv upload into product rows.
// Files with an unknown extension are tried as a workbook, then as CSV.
// Rows that cannot be used are reported in the returned errors instead of
// aborting the whole file.
func ParseProductRows(fileName string, reader io.Reader) ([]ImportRow, []RowError, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil, ErrEmptyFile
	}

	var rows [][]string
	switch strings.ToLower(strings.TrimSpace(filepath.Ext(fileName))) {
	case ".csv":
		rows, err = parseCSVRows(data)
	case ".xlsx", ".xlsm":
		rows, err = parseExcelRows(data)
	default:
		rows, err = parseExcelRows(data)
		if err != nil {
			rows, err = parseCSVRows(data)
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return parseProductTable(rows)
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func parseProductTable(rows [][]string) ([]ImportRow, []RowError, error) {
	colMap := mapColumns(rows[0])
	for _, required := range []string{"sku", "description", "pack_price"} {
		if _, ok := colMap[required]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var (
		items   []ImportRow
		rowErrs []RowError
		seen    = map[string]int{}
	)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		rowNumber := index + 1
		if isBlankRow(cells) {
			continue
		}
		item := ImportRow{
			Row:             rowNumber,
			SKU:             cleanText(readCell(cells, colMap, "sku")),
			Description:     cleanText(readCell(cells, colMap, "description")),
			CostPrice:       pricing.ParseDecimal(readCell(cells, colMap, "cost_price")),
			PackPrice:       pricing.ParseDecimal(readCell(cells, colMap, "pack_price")),
			PackSize:        pricing.ParseDecimal(readCell(cells, colMap, "pack_size")),
			WastePercent:    pricing.ParseDecimal(readCell(cells, colMap, "waste_percent")),
			ApplicationType: cleanText(readCell(cells, colMap, "application_type")),
			IsLabour:        parseBool(readCell(cells, colMap, "is_labour"), false),
			IsActive:        parseBool(readCell(cells, colMap, "is_active"), true),
		}
		if item.SKU == "" {
			rowErrs = append(rowErrs, RowError{Row: rowNumber, Message: "sku is required"})
			continue
		}
		if item.Description == "" {
			rowErrs = append(rowErrs, RowError{Row: rowNumber, Message: "description is required"})
			continue
		}
		if !item.PackSize.IsPositive() {
			item.PackSize = decimal.NewFromInt(1)
		}
		key := strings.ToLower(item.SKU)
		if prev, ok := seen[key]; ok {
			items[prev] = item
			continue
		}
		seen[key] = len(items)
		items = append(items, item)
	}
	if len(items) == 0 && len(rowErrs) == 0 {
		return nil, nil, fmt.Errorf("file has no product rows")
	}
	return items, rowErrs, nil
}

func mapColumns(header []string) map[string]int {
	result := make(map[string]int)
	for index, raw := range header {
		name := normalizeHeader(raw)
		for field, aliases := range headerAliases {
			if _, done := result[field]; done {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					result[field] = index
					break
				}
			}
		}
	}
	return result
}

func normalizeHeader(raw string) string {
	name := strings.ToLower(cleanText(raw))
	name = strings.TrimSuffix(name, "*")
	return strings.TrimSpace(name)
}

func readCell(cells []string, colMap map[string]int, field string) string {
	index, ok := colMap[field]
	if !ok || index < 0 || index >= len(cells) {
		return ""
	}
	return cells[index]
}

func cleanText(value string) string {
	value = strings.ReplaceAll(value, "\u00a0", " ")
	value = strings.TrimPrefix(value, "\ufeff")
	return strings.Join(strings.Fields(value), " ")
}

func isBlankRow(cells []string) bool {
	for _, cell := range cells {
		if cleanText(cell) != "" {
			return false
		}
	}
	return true
}

func parseBool(raw string, fallback bool) bool {
	switch strings.ToLower(cleanText(raw)) {
	case "1", "y", "yes", "true", "x":
		return true
	case "0", "n", "no", "false":
		return false
	default:
		return fallback
	}
}
