package contacts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/shared"
)

// Auditor records contact changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements contact use cases.
type Service struct {
	repo  Repository
	audit Auditor
}

// NewService constructs the service. audit may be nil.
func NewService(repo Repository, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns a page of contacts.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Contact, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns a contact by id.
func (s *Service) Get(ctx context.Context, id int64) (Contact, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new contact.
func (s *Service) Create(ctx context.Context, req ContactRequest) (Contact, error) {
	c, err := fromRequest(req)
	if err != nil {
		return Contact{}, err
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return Contact{}, fmt.Errorf("create contact: %w", err)
	}
	s.record(ctx, "crm.contact.create", id)
	return s.repo.Get(ctx, id)
}

// Update replaces a contact's fields.
func (s *Service) Update(ctx context.Context, id int64, req ContactRequest) (Contact, error) {
	c, err := fromRequest(req)
	if err != nil {
		return Contact{}, err
	}
	c.ID = id
	if err := s.repo.Update(ctx, c); err != nil {
		return Contact{}, fmt.Errorf("update contact: %w", err)
	}
	s.record(ctx, "crm.contact.update", id)
	return s.repo.Get(ctx, id)
}

// Delete removes a contact.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	s.record(ctx, "crm.contact.delete", id)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "contact", EntityID: strconv.FormatInt(id, 10)})
}

func fromRequest(req ContactRequest) (Contact, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.Email = strings.TrimSpace(req.Email)
	if err := httpx.Validate(req); err != nil {
		return Contact{}, err
	}
	return Contact{
		CompanyID: req.CompanyID,
		FirstName: req.FirstName,
		LastName:  strings.TrimSpace(req.LastName),
		Email:     req.Email,
		Phone:     strings.TrimSpace(req.Phone),
		Role:      strings.TrimSpace(req.Role),
		Notes:     strings.TrimSpace(req.Notes),
	}, nil
}
