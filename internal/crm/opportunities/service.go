package opportunities

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/shared"
)

// Auditor records pipeline changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements pipeline use cases.
type Service struct {
	repo  Repository
	audit Auditor
}

// NewService constructs the service. audit may be nil.
func NewService(repo Repository, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns a page of opportunities.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Opportunity, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns an opportunity by id.
func (s *Service) Get(ctx context.Context, id int64) (Opportunity, error) {
	return s.repo.Get(ctx, id)
}

// Board groups every opportunity into its stage column, in position order.
func (s *Service) Board(ctx context.Context) ([]Column, error) {
	items, _, err := s.repo.List(ctx, ListFilters{})
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	byStage := make(map[Stage][]Opportunity)
	for _, o := range items {
		byStage[o.Stage] = append(byStage[o.Stage], o)
	}
	columns := make([]Column, 0, len(Stages()))
	for _, stage := range Stages() {
		cards := byStage[stage]
		slices.SortStableFunc(cards, func(a, b Opportunity) int {
			if a.Position != b.Position {
				return a.Position - b.Position
			}
			return int(a.ID - b.ID)
		})
		total := decimal.Zero
		for _, o := range cards {
			total = total.Add(o.EstimatedValue)
		}
		if cards == nil {
			cards = []Opportunity{}
		}
		columns = append(columns, Column{Stage: stage, Count: len(cards), TotalValue: total, Opportunities: cards})
	}
	return columns, nil
}

// Create adds an opportunity at the bottom of its stage.
func (s *Service) Create(ctx context.Context, req OpportunityRequest) (Opportunity, error) {
	o, err := fromRequest(req)
	if err != nil {
		return Opportunity{}, err
	}
	id, err := s.repo.Create(ctx, o)
	if err != nil {
		return Opportunity{}, fmt.Errorf("create opportunity: %w", err)
	}
	s.record(ctx, "crm.opportunity.create", id, nil)
	return s.repo.Get(ctx, id)
}

// Update edits the details of an opportunity. Stage changes go through Move.
func (s *Service) Update(ctx context.Context, id int64, req OpportunityRequest) (Opportunity, error) {
	o, err := fromRequest(req)
	if err != nil {
		return Opportunity{}, err
	}
	o.ID = id
	if err := s.repo.Update(ctx, o); err != nil {
		return Opportunity{}, fmt.Errorf("update opportunity: %w", err)
	}
	s.record(ctx, "crm.opportunity.update", id, nil)
	return s.repo.Get(ctx, id)
}

// Delete removes an opportunity and closes the gap in its column.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		remaining, err := tx.StageOrder(ctx, current.Stage)
		if err != nil {
			return err
		}
		return tx.Reorder(ctx, current.Stage, remaining)
	})
	if err != nil {
		return fmt.Errorf("delete opportunity: %w", err)
	}
	s.record(ctx, "crm.opportunity.delete", id, nil)
	return nil
}

// Move places an opportunity at position within stage. Positions past the
// end of the column append.
func (s *Service) Move(ctx context.Context, id int64, req MoveRequest) (Opportunity, error) {
	if err := httpx.Validate(req); err != nil {
		return Opportunity{}, err
	}
	stage, err := ParseStage(req.Stage)
	if err != nil {
		return Opportunity{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	var from Stage
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = current.Stage
		return relocate(ctx, tx, current, stage, req.Position)
	})
	if err != nil {
		return Opportunity{}, fmt.Errorf("move opportunity: %w", err)
	}
	s.record(ctx, "crm.opportunity.move", id, map[string]any{"from": from, "to": stage, "position": req.Position})
	return s.repo.Get(ctx, id)
}

// Advance moves an opportunity to the end of stage unless it is already
// there or already closed. It reports whether anything changed.
func (s *Service) Advance(ctx context.Context, id int64, stage Stage) (bool, error) {
	moved := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Stage == stage || current.Stage.Closed() {
			return nil
		}
		if !stage.Closed() && stageIndex(current.Stage) > stageIndex(stage) {
			return nil
		}
		moved = true
		return relocate(ctx, tx, current, stage, -1)
	})
	if err != nil {
		return false, fmt.Errorf("advance opportunity: %w", err)
	}
	if moved {
		s.record(ctx, "crm.opportunity.advance", id, map[string]any{"to": stage})
	}
	return moved, nil
}

// relocate removes current from its column and inserts it into stage at
// position; a negative position appends.
func relocate(ctx context.Context, tx Repository, current Opportunity, stage Stage, position int) error {
	target, err := tx.StageOrder(ctx, stage)
	if err != nil {
		return err
	}
	target = slices.DeleteFunc(target, func(v int64) bool { return v == current.ID })
	if position < 0 || position > len(target) {
		position = len(target)
	}
	target = slices.Insert(target, position, current.ID)

	if current.Stage != stage {
		source, err := tx.StageOrder(ctx, current.Stage)
		if err != nil {
			return err
		}
		source = slices.DeleteFunc(source, func(v int64) bool { return v == current.ID })
		if err := tx.Reorder(ctx, current.Stage, source); err != nil {
			return err
		}
	}
	return tx.Reorder(ctx, stage, target)
}

func stageIndex(stage Stage) int {
	return slices.Index(Stages(), stage)
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "opportunity", EntityID: strconv.FormatInt(id, 10), Meta: meta})
}

func fromRequest(req OpportunityRequest) (Opportunity, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Stage = strings.ToUpper(strings.TrimSpace(req.Stage))
	if err := httpx.Validate(req); err != nil {
		return Opportunity{}, err
	}
	if req.EstimatedValue.IsNegative() {
		return Opportunity{}, &httpx.ValidationError{Fields: map[string]string{"estimated_value": "must not be negative"}}
	}
	o := Opportunity{
		Title:          req.Title,
		CompanyID:      req.CompanyID,
		ContactID:      req.ContactID,
		Stage:          StageNew,
		EstimatedValue: req.EstimatedValue.Round(2),
		Notes:          strings.TrimSpace(req.Notes),
	}
	if req.Stage != "" {
		o.Stage = Stage(req.Stage)
	}
	if req.ExpectedClose != "" {
		t, err := time.Parse(time.DateOnly, req.ExpectedClose)
		if err != nil {
			return Opportunity{}, &httpx.ValidationError{Fields: map[string]string{"expected_close": "is invalid"}}
		}
		o.ExpectedClose = &t
	}
	return o, nil
}
