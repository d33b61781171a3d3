package quotes

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/thermaquote/thermaquote/internal/pricing"
)

// Amount is a decimal form input. It accepts a JSON number or string;
// anything unparsable or negative reads as zero.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	a.Decimal = pricing.ParseDecimal(strings.Trim(raw, `"`))
	return nil
}

// QuoteRequest is the create/update/preview payload. Omitted waste percent
// and labour rate take the business defaults.
type QuoteRequest struct {
	CompanyID     *int64           `json:"company_id" validate:"omitempty,gt=0"`
	ContactID     *int64           `json:"contact_id" validate:"omitempty,gt=0"`
	OpportunityID *int64           `json:"opportunity_id" validate:"omitempty,gt=0"`
	ClientName    string           `json:"client_name" validate:"required,max=200"`
	SiteAddress   string           `json:"site_address" validate:"max=500"`
	ValidUntil    string           `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	PricingTier   string           `json:"pricing_tier" validate:"max=50"`
	MarkupPercent *Amount          `json:"markup_percent"`
	WastePercent  *Amount          `json:"waste_percent"`
	LabourRate    *Amount          `json:"labour_rate"`
	Notes         string           `json:"notes"`
	Sections      []SectionRequest `json:"sections" validate:"dive"`
}

// SectionRequest is one section of a QuoteRequest.
type SectionRequest struct {
	Name              string        `json:"name" validate:"required,max=200"`
	ApplicationTypeID *int64        `json:"application_type_id" validate:"omitempty,gt=0"`
	Color             string        `json:"color" validate:"omitempty,hexcolor"`
	Lines             []LineRequest `json:"lines" validate:"dive"`
}

// LineRequest is one line of a SectionRequest. Cost and sell are only
// honoured for manual lines without a product.
type LineRequest struct {
	ProductID   *int64 `json:"product_id" validate:"omitempty,gt=0"`
	Description string `json:"description" validate:"max=300"`
	Area        Amount `json:"area"`
	IsLabour    bool   `json:"is_labour"`
	LineCost    Amount `json:"line_cost"`
	LineSell    Amount `json:"line_sell"`
}

// SettingsRequest carries the quote-wide inputs for a standalone
// calculation.
type SettingsRequest struct {
	PricingTier   string  `json:"pricing_tier" validate:"max=50"`
	MarkupPercent *Amount `json:"markup_percent"`
	WastePercent  *Amount `json:"waste_percent"`
	LabourRate    *Amount `json:"labour_rate"`
}

// SelectProductRequest assigns a product to one line of a section.
type SelectProductRequest struct {
	SettingsRequest
	ProductID int64         `json:"product_id" validate:"required,gt=0"`
	Index     int           `json:"index" validate:"gte=0"`
	Lines     []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// SelectProductResult is the recalculated section after a selection.
type SelectProductResult struct {
	Lines  []pricing.LineItem `json:"lines"`
	Totals pricing.Totals     `json:"totals"`
}

// StatusRequest changes a quote's workflow state.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT SENT ACCEPTED DECLINED EXPIRED"`
}

func (l LineRequest) toPricing() pricing.LineItem {
	return pricing.LineItem{
		ProductID:   l.ProductID,
		Description: strings.TrimSpace(l.Description),
		Area:        pricing.NormalizeArea(l.Area.Decimal),
		IsLabour:    l.IsLabour,
		LineCost:    l.LineCost.Decimal,
		LineSell:    l.LineSell.Decimal,
	}
}

func amountOr(a *Amount, fallback decimal.Decimal) decimal.Decimal {
	if a == nil {
		return fallback
	}
	return a.Decimal
}
