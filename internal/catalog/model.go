// Package catalog maintains the product list that quote lines price from.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/thermaquote/thermaquote/internal/pricing"
)

// Product is a sellable item priced per pack.
type Product struct {
	ID                int64           `json:"id"`
	SKU               string          `json:"sku"`
	Description       string          `json:"description"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	PackPrice         decimal.Decimal `json:"pack_price"`
	PackSize          decimal.Decimal `json:"pack_size"`
	WastePercent      decimal.Decimal `json:"waste_percent"`
	ApplicationTypeID *int64          `json:"application_type_id,omitempty"`
	ApplicationType   string          `json:"application_type,omitempty"`
	Color             string          `json:"color,omitempty"`
	IsLabour          bool            `json:"is_labour"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Pricing returns the calculator view of the product.
func (p Product) Pricing() pricing.Product {
	return pricing.Product{
		ID:          p.ID,
		Description: p.Description,
		PackPrice:   p.PackPrice,
		PackSize:    p.PackSize,
		IsLabour:    p.IsLabour,
	}
}

// ApplicationType groups products by where they are installed.
type ApplicationType struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search            string
	Active            *bool
	Labour            *bool
	ApplicationTypeID *int64
	Limit             int
	Offset            int
}
