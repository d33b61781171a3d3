// Package quotes manages priced quotes: a header with quote-wide pricing
// settings, ordered sections, and line items whose derived figures are
// always recomputed by the pricing calculator before they are returned or
// stored.
package quotes

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thermaquote/thermaquote/internal/pricing"
)

// ErrInvalidStatus is returned for a disallowed status change or for edits
// to a quote that is no longer a draft.
var ErrInvalidStatus = errors.New("invalid status transition")

// Status is the quote workflow state.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusExpired  Status = "EXPIRED"
)

var transitions = map[Status][]Status{
	StatusDraft:    {StatusSent},
	StatusSent:     {StatusAccepted, StatusDeclined, StatusExpired, StatusDraft},
	StatusDeclined: {StatusDraft},
	StatusExpired:  {StatusDraft},
	StatusAccepted: nil,
}

// CanTransition reports whether a quote in s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus validates a status name.
func ParseStatus(raw string) (Status, error) {
	st := Status(raw)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return st, nil
}

// LineItem is a stored quote line.
type LineItem struct {
	ID        int64 `json:"id,omitempty"`
	SectionID int64 `json:"section_id,omitempty"`
	SortOrder int   `json:"sort_order"`
	pricing.LineItem
}

// Section is an ordered group of lines, typically one area of the site.
type Section struct {
	ID                int64      `json:"id,omitempty"`
	QuoteID           int64      `json:"quote_id,omitempty"`
	Name              string     `json:"name"`
	ApplicationTypeID *int64     `json:"application_type_id,omitempty"`
	Color             string     `json:"color,omitempty"`
	SortOrder         int        `json:"sort_order"`
	Lines             []LineItem `json:"lines"`
}

// Quote is the aggregate root.
type Quote struct {
	ID            int64           `json:"id,omitempty"`
	DocNumber     string          `json:"doc_number,omitempty"`
	ShareToken    string          `json:"share_token,omitempty"`
	CompanyID     *int64          `json:"company_id,omitempty"`
	CompanyName   string          `json:"company_name,omitempty"`
	ContactID     *int64          `json:"contact_id,omitempty"`
	ContactName   string          `json:"contact_name,omitempty"`
	OpportunityID *int64          `json:"opportunity_id,omitempty"`
	ClientName    string          `json:"client_name"`
	SiteAddress   string          `json:"site_address,omitempty"`
	Status        Status          `json:"status"`
	ValidUntil    time.Time       `json:"valid_until"`
	PricingTier   pricing.Tier    `json:"pricing_tier"`
	MarkupPercent decimal.Decimal `json:"markup_percent"`
	WastePercent  decimal.Decimal `json:"waste_percent"`
	LabourRate    decimal.Decimal `json:"labour_rate"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     int64           `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Sections      []Section       `json:"sections"`
	Totals        pricing.Totals  `json:"totals"`
}

// Lines flattens every section in order.
func (q Quote) Lines() []LineItem {
	var all []LineItem
	for _, s := range q.Sections {
		all = append(all, s.Lines...)
	}
	return all
}

// ProductIDs lists the products referenced by non-labour lines.
func (q Quote) ProductIDs() []int64 {
	var ids []int64
	for _, l := range q.Lines() {
		if !l.IsLabour && l.ProductID != nil {
			ids = append(ids, *l.ProductID)
		}
	}
	return ids
}

// ListFilters narrows quote listings.
type ListFilters struct {
	Search        string
	Status        *Status
	CompanyID     *int64
	OpportunityID *int64
	Limit         int
	Offset        int
}
