package pricing

const labourPrefix = "Installation labour"

// DeriveLabourLine builds the labour line paired with a product line. It
// reports false when productLine is itself labour, has no product, or has no
// positive area; a zero-area selection never creates a zero-cost labour row.
func DeriveLabourLine(productLine LineItem, s Settings) (LineItem, bool) {
	if productLine.IsLabour || productLine.ProductID == nil || !productLine.Area.IsPositive() {
		return LineItem{}, false
	}
	description := labourPrefix
	if productLine.Description != "" {
		description += ": " + productLine.Description
	}
	labour := LineItem{
		Description: description,
		Area:        productLine.Area,
		IsLabour:    true,
	}
	return RecalculateLineItem(labour, nil, s), true
}

// SelectProduct assigns product to lines[index], recalculates it and places
// the derived labour line directly after it. An existing labour line in that
// position is replaced rather than duplicated. Selecting on a labour line only
// recalculates it. The input slice is not modified.
func SelectProduct(lines []LineItem, index int, product Product, s Settings) []LineItem {
	out := make([]LineItem, len(lines), len(lines)+1)
	copy(out, lines)
	if index < 0 || index >= len(out) {
		return out
	}

	line := out[index]
	if line.IsLabour {
		out[index] = RecalculateLineItem(line, nil, s)
		return out
	}

	id := product.ID
	line.ProductID = &id
	line.Description = product.Description
	line = RecalculateLineItem(line, &product, s)
	out[index] = line

	labour, ok := DeriveLabourLine(line, s)
	if !ok {
		return out
	}
	next := index + 1
	if next < len(out) && out[next].IsLabour {
		out[next] = labour
		return out
	}
	out = append(out, LineItem{})
	copy(out[next+1:], out[next:])
	out[next] = labour
	return out
}
