package companies

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/shared"
)

// Auditor records company changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements company use cases.
type Service struct {
	repo  Repository
	audit Auditor
}

// NewService constructs the service. audit may be nil.
func NewService(repo Repository, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns a page of companies.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Company, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns a company by id.
func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new company.
func (s *Service) Create(ctx context.Context, req CompanyRequest) (Company, error) {
	c, err := fromRequest(req)
	if err != nil {
		return Company{}, err
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return Company{}, fmt.Errorf("create company: %w", err)
	}
	s.record(ctx, "crm.company.create", id)
	return s.repo.Get(ctx, id)
}

// Update replaces a company's fields.
func (s *Service) Update(ctx context.Context, id int64, req CompanyRequest) (Company, error) {
	c, err := fromRequest(req)
	if err != nil {
		return Company{}, err
	}
	c.ID = id
	if err := s.repo.Update(ctx, c); err != nil {
		return Company{}, fmt.Errorf("update company: %w", err)
	}
	s.record(ctx, "crm.company.update", id)
	return s.repo.Get(ctx, id)
}

// Delete removes a company. Contacts, opportunities and quotes keep their
// rows with the link cleared.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	s.record(ctx, "crm.company.delete", id)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "company", EntityID: strconv.FormatInt(id, 10)})
}

func fromRequest(req CompanyRequest) (Company, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := httpx.Validate(req); err != nil {
		return Company{}, err
	}
	return Company{
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Email:   req.Email,
		Address: strings.TrimSpace(req.Address),
		Notes:   strings.TrimSpace(req.Notes),
	}, nil
}
