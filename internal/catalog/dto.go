package catalog

import "github.com/shopspring/decimal"

// ProductRequest is the create/update payload for a product.
type ProductRequest struct {
	SKU               string          `json:"sku" validate:"required,max=64"`
	Description       string          `json:"description" validate:"required,max=300"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	PackPrice         decimal.Decimal `json:"pack_price"`
	PackSize          decimal.Decimal `json:"pack_size"`
	WastePercent      decimal.Decimal `json:"waste_percent"`
	ApplicationTypeID *int64          `json:"application_type_id,omitempty" validate:"omitempty,gt=0"`
	IsLabour          bool            `json:"is_labour"`
	IsActive          *bool           `json:"is_active,omitempty"`
}

// ApplicationTypeRequest creates an application type.
type ApplicationTypeRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// ImportResult summarises a spreadsheet import.
type ImportResult struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Errors  []RowError  `json:"errors,omitempty"`
	Rows    []ImportRow `json:"-"`
}

// RowError reports a rejected spreadsheet row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}
