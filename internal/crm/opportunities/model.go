// Package opportunities runs the sales pipeline: opportunities move across
// stage columns on a kanban board and keep a position within their column.
package opportunities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stage is a pipeline column.
type Stage string

const (
	StageNew       Stage = "NEW"
	StageQualified Stage = "QUALIFIED"
	StageSiteVisit Stage = "SITE_VISIT"
	StageQuoted    Stage = "QUOTED"
	StageWon       Stage = "WON"
	StageLost      Stage = "LOST"
)

// Stages returns the board columns in display order.
func Stages() []Stage {
	return []Stage{StageNew, StageQualified, StageSiteVisit, StageQuoted, StageWon, StageLost}
}

// ParseStage normalises s into a known stage.
func ParseStage(s string) (Stage, error) {
	candidate := Stage(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range Stages() {
		if st == candidate {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Closed reports whether the stage ends the pipeline.
func (s Stage) Closed() bool {
	return s == StageWon || s == StageLost
}

// Opportunity is a potential job in the pipeline.
type Opportunity struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	CompanyID      *int64          `json:"company_id,omitempty"`
	CompanyName    string          `json:"company_name,omitempty"`
	ContactID      *int64          `json:"contact_id,omitempty"`
	ContactName    string          `json:"contact_name,omitempty"`
	Stage          Stage           `json:"stage"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	ExpectedClose  *time.Time      `json:"expected_close,omitempty"`
	Position       int             `json:"position"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Column is one stage of the board.
type Column struct {
	Stage         Stage           `json:"stage"`
	Count         int             `json:"count"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Opportunities []Opportunity   `json:"opportunities"`
}

// OpportunityRequest is the create/update payload.
type OpportunityRequest struct {
	Title          string          `json:"title" validate:"required,max=200"`
	CompanyID      *int64          `json:"company_id" validate:"omitempty,gt=0"`
	ContactID      *int64          `json:"contact_id" validate:"omitempty,gt=0"`
	Stage          string          `json:"stage" validate:"omitempty,oneof=NEW QUALIFIED SITE_VISIT QUOTED WON LOST"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	ExpectedClose  string          `json:"expected_close" validate:"omitempty,datetime=2006-01-02"`
	Notes          string          `json:"notes"`
}

// MoveRequest relocates an opportunity on the board.
type MoveRequest struct {
	Stage    string `json:"stage" validate:"required,oneof=NEW QUALIFIED SITE_VISIT QUOTED WON LOST"`
	Position int    `json:"position" validate:"gte=0"`
}

// ListFilters narrows opportunity listings.
type ListFilters struct {
	Search    string
	Stage     *Stage
	CompanyID *int64
	Limit     int
	Offset    int
}
