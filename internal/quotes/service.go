package quotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/thermaquote/thermaquote/internal/crm/opportunities"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/pricing"
	"github.com/thermaquote/thermaquote/internal/shared"
)

const idempotencyModule = "quotes"

// Catalog resolves products for pricing.
type Catalog interface {
	PricingCatalog(ctx context.Context, ids []int64) (pricing.CatalogMap, error)
}

// Pipeline advances the opportunity a quote belongs to.
type Pipeline interface {
	Advance(ctx context.Context, id int64, stage opportunities.Stage) (bool, error)
}

// Idempotency guards quote creation against replays.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Complete(ctx context.Context, key, module, resourceID string) error
	Resource(ctx context.Context, key, module string) (string, error)
	Delete(ctx context.Context, key, module string) error
}

// Auditor records quote changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SaveObserver counts persisted quotes.
type SaveObserver interface {
	QuoteSaved(status string)
}

// Config holds the business defaults applied to new quotes.
type Config struct {
	Defaults pricing.Defaults
	Validity time.Duration
}

// Service implements quote use cases.
type Service struct {
	repo     Repository
	catalog  Catalog
	cfg      Config
	idem     Idempotency
	pipeline Pipeline
	audit    Auditor
	metrics  SaveObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, catalog Catalog, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Validity <= 0 {
		cfg.Validity = 30 * 24 * time.Hour
	}
	return &Service{repo: repo, catalog: catalog, cfg: cfg, logger: logger, now: time.Now}
}

// SetIdempotency enables Idempotency-Key handling on Create.
func (s *Service) SetIdempotency(store Idempotency) { s.idem = store }

// SetPipeline links status changes to the opportunity board.
func (s *Service) SetPipeline(p Pipeline) { s.pipeline = p }

// SetAudit records mutations to the audit log.
func (s *Service) SetAudit(a Auditor) { s.audit = a }

// SetMetrics counts saves.
func (s *Service) SetMetrics(m SaveObserver) { s.metrics = m }

// WithNow overrides the clock for tests.
func (s *Service) WithNow(now func() time.Time) { s.now = now }

// List returns quote headers.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Quote, int, error) {
	return s.repo.List(ctx, filters)
}

// Get loads a quote with its sections and lines as stored.
func (s *Service) Get(ctx context.Context, id int64) (Quote, error) {
	var (
		q        Quote
		sections []Section
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		q, err = s.repo.Get(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		sections, err = s.repo.Sections(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Quote{}, err
	}
	q.Sections = sections
	return q, nil
}

// GetShared loads a quote by its share token. Drafts are never shared.
func (s *Service) GetShared(ctx context.Context, token string) (Quote, error) {
	if _, err := uuid.Parse(token); err != nil {
		return Quote{}, fmt.Errorf("shared quote: %w", httpx.ErrNotFound)
	}
	q, err := s.repo.GetByShareToken(ctx, token)
	if err != nil {
		return Quote{}, err
	}
	if q.Status == StatusDraft {
		return Quote{}, fmt.Errorf("shared quote: %w", httpx.ErrNotFound)
	}
	sections, err := s.repo.Sections(ctx, q.ID)
	if err != nil {
		return Quote{}, err
	}
	q.Sections = sections
	return q, nil
}

// Preview prices a request without saving it.
func (s *Service) Preview(ctx context.Context, req QuoteRequest) (Quote, error) {
	return s.build(ctx, req)
}

// SelectProduct assigns a product to one line, inserting or replacing the
// paired labour line, and reprices the whole section.
func (s *Service) SelectProduct(ctx context.Context, req SelectProductRequest) (SelectProductResult, error) {
	if err := httpx.Validate(req); err != nil {
		return SelectProductResult{}, err
	}
	if req.Index >= len(req.Lines) {
		return SelectProductResult{}, &httpx.ValidationError{Fields: map[string]string{"index": "is out of range"}}
	}
	_, settings, err := s.settings(req.PricingTier, req.MarkupPercent, req.WastePercent, req.LabourRate)
	if err != nil {
		return SelectProductResult{}, err
	}

	lines := make([]pricing.LineItem, len(req.Lines))
	ids := []int64{req.ProductID}
	for i, l := range req.Lines {
		lines[i] = l.toPricing()
		if l.ProductID != nil {
			ids = append(ids, *l.ProductID)
		}
	}
	catalog, err := s.catalog.PricingCatalog(ctx, ids)
	if err != nil {
		return SelectProductResult{}, fmt.Errorf("load catalog: %w", err)
	}
	product, ok := catalog.Product(req.ProductID)
	if !ok {
		return SelectProductResult{}, fmt.Errorf("product %d: %w", req.ProductID, httpx.ErrNotFound)
	}

	selected := pricing.SelectProduct(lines, req.Index, product, settings)
	priced := pricing.RecalculateQuote(pricing.Quote{Sections: []pricing.Section{{Lines: selected}}}, catalog, settings)
	return SelectProductResult{Lines: priced.Sections[0].Lines, Totals: priced.Totals}, nil
}

// Create prices and stores a new draft. When key is set, a repeated call
// with the same key returns the quote created first and reports replayed.
func (s *Service) Create(ctx context.Context, req QuoteRequest, key string, userID int64) (Quote, bool, error) {
	useKey := key != "" && s.idem != nil
	if useKey {
		existing, err := s.claim(ctx, key)
		if err != nil {
			return Quote{}, false, err
		}
		if existing > 0 {
			q, err := s.Get(ctx, existing)
			return q, true, err
		}
	}

	q, err := s.build(ctx, req)
	if err == nil {
		q.CreatedBy = userID
		err = s.insert(ctx, &q)
	}
	if err != nil {
		if useKey {
			if derr := s.idem.Delete(ctx, key, idempotencyModule); derr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		return Quote{}, false, err
	}
	if useKey {
		if err := s.idem.Complete(ctx, key, idempotencyModule, strconv.FormatInt(q.ID, 10)); err != nil {
			s.logger.Warn("complete idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}

	s.saved(ctx, "quote.create", q)
	created, err := s.Get(ctx, q.ID)
	return created, false, err
}

// Update replaces a draft's header and tree, repricing every line.
func (s *Service) Update(ctx context.Context, id int64, req QuoteRequest) (Quote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quote{}, fmt.Errorf("get quote: %w", err)
	}
	if existing.Status != StatusDraft {
		return Quote{}, fmt.Errorf("%w: only DRAFT quotes can be edited", ErrInvalidStatus)
	}

	q, err := s.build(ctx, req)
	if err != nil {
		return Quote{}, err
	}
	q.ID = id
	q.Status = existing.Status
	if req.ValidUntil == "" {
		q.ValidUntil = existing.ValidUntil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpdateHeader(ctx, q); err != nil {
			return err
		}
		return tx.ReplaceSections(ctx, id, q.Sections)
	})
	if err != nil {
		return Quote{}, fmt.Errorf("update quote: %w", err)
	}
	s.saved(ctx, "quote.update", q)
	return s.Get(ctx, id)
}

// Recalculate reprices a stored draft against the current catalog.
func (s *Service) Recalculate(ctx context.Context, id int64) (Quote, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if q.Status != StatusDraft {
		return Quote{}, fmt.Errorf("%w: only DRAFT quotes can be repriced", ErrInvalidStatus)
	}
	if err := s.price(ctx, &q); err != nil {
		return Quote{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.UpdateHeader(ctx, q); err != nil {
			return err
		}
		return tx.ReplaceSections(ctx, id, q.Sections)
	})
	if err != nil {
		return Quote{}, fmt.Errorf("recalculate quote: %w", err)
	}
	s.saved(ctx, "quote.recalculate", q)
	return s.Get(ctx, id)
}

// ChangeStatus moves a quote through its workflow. Sending a quote whose
// validity has lapsed restarts the validity window.
func (s *Service) ChangeStatus(ctx context.Context, id int64, req StatusRequest) (Quote, error) {
	if err := httpx.Validate(req); err != nil {
		return Quote{}, err
	}
	next, err := ParseStatus(req.Status)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quote{}, fmt.Errorf("get quote: %w", err)
	}
	if !existing.Status.CanTransition(next) {
		return Quote{}, fmt.Errorf("%w: %s to %s", ErrInvalidStatus, existing.Status, next)
	}

	validUntil := existing.ValidUntil
	today := s.today()
	if next == StatusSent && validUntil.Before(today) {
		validUntil = today.Add(s.cfg.Validity)
	}
	if err := s.repo.UpdateStatus(ctx, id, next, validUntil); err != nil {
		return Quote{}, fmt.Errorf("change status: %w", err)
	}
	existing.Status = next
	s.advancePipeline(ctx, existing)
	s.saved(ctx, "quote.status."+strings.ToLower(string(next)), existing)
	return s.Get(ctx, id)
}

// Duplicate copies a quote into a new draft priced from the current catalog.
func (s *Service) Duplicate(ctx context.Context, id, userID int64) (Quote, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	q := src
	q.ID = 0
	q.CreatedBy = userID
	q.ValidUntil = time.Time{}
	q.Sections = make([]Section, len(src.Sections))
	for i, sec := range src.Sections {
		lines := make([]LineItem, len(sec.Lines))
		for j, l := range sec.Lines {
			lines[j] = LineItem{LineItem: l.LineItem}
		}
		q.Sections[i] = Section{Name: sec.Name, ApplicationTypeID: sec.ApplicationTypeID, Color: sec.Color, Lines: lines}
	}
	if err := s.price(ctx, &q); err != nil {
		return Quote{}, err
	}
	if err := s.insert(ctx, &q); err != nil {
		return Quote{}, err
	}
	s.saved(ctx, "quote.duplicate", q)
	return s.Get(ctx, q.ID)
}

// ExpireOverdue marks every sent quote whose validity ended before today
// as expired and returns how many changed.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	ids, err := s.repo.ExpireOverdue(ctx, s.today())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if s.metrics != nil {
			s.metrics.QuoteSaved(string(StatusExpired))
		}
		s.record(ctx, "quote.expire", id)
	}
	return len(ids), nil
}

func (s *Service) claim(ctx context.Context, key string) (int64, error) {
	err := s.idem.CheckAndInsert(ctx, key, idempotencyModule)
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, shared.ErrIdempotencyConflict) {
		return 0, fmt.Errorf("claim idempotency key: %w", err)
	}
	resource, err := s.idem.Resource(ctx, key, idempotencyModule)
	if err != nil {
		return 0, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if resource == "" {
		return 0, fmt.Errorf("%w: request with idempotency key %q is still in progress", httpx.ErrConflict, key)
	}
	return strconv.ParseInt(resource, 10, 64)
}

func (s *Service) insert(ctx context.Context, q *Quote) error {
	now := s.now()
	q.Status = StatusDraft
	q.ShareToken = uuid.NewString()
	if q.ValidUntil.IsZero() {
		q.ValidUntil = s.today().Add(s.cfg.Validity)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		number, err := tx.GenerateNumber(ctx, now)
		if err != nil {
			return fmt.Errorf("generate doc number: %w", err)
		}
		q.DocNumber = number
		id, err := tx.Create(ctx, *q)
		if err != nil {
			return err
		}
		q.ID = id
		return tx.ReplaceSections(ctx, id, q.Sections)
	})
	if err != nil {
		return fmt.Errorf("create quote: %w", err)
	}
	return nil
}

// build validates req and returns the priced, unsaved quote.
func (s *Service) build(ctx context.Context, req QuoteRequest) (Quote, error) {
	req.ClientName = strings.TrimSpace(req.ClientName)
	if err := httpx.Validate(req); err != nil {
		return Quote{}, err
	}
	tier, settings, err := s.settings(req.PricingTier, req.MarkupPercent, req.WastePercent, req.LabourRate)
	if err != nil {
		return Quote{}, err
	}
	if err := checkAreas(req.Sections); err != nil {
		return Quote{}, err
	}
	q := Quote{
		CompanyID:     req.CompanyID,
		ContactID:     req.ContactID,
		OpportunityID: req.OpportunityID,
		ClientName:    req.ClientName,
		SiteAddress:   strings.TrimSpace(req.SiteAddress),
		Status:        StatusDraft,
		PricingTier:   tier,
		MarkupPercent: settings.MarkupPercent,
		WastePercent:  settings.WastePercent,
		LabourRate:    settings.LabourRate,
		Notes:         strings.TrimSpace(req.Notes),
		Sections:      make([]Section, len(req.Sections)),
	}
	if req.ValidUntil != "" {
		t, err := time.Parse(time.DateOnly, req.ValidUntil)
		if err != nil {
			return Quote{}, &httpx.ValidationError{Fields: map[string]string{"valid_until": "is invalid"}}
		}
		q.ValidUntil = t
	} else {
		q.ValidUntil = s.today().Add(s.cfg.Validity)
	}
	for i, sec := range req.Sections {
		lines := make([]LineItem, len(sec.Lines))
		for j, l := range sec.Lines {
			lines[j] = LineItem{SortOrder: j, LineItem: l.toPricing()}
		}
		q.Sections[i] = Section{
			Name:              strings.TrimSpace(sec.Name),
			ApplicationTypeID: sec.ApplicationTypeID,
			Color:             sec.Color,
			SortOrder:         i,
			Lines:             lines,
		}
	}
	if err := s.price(ctx, &q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

// price recomputes every line and the totals from the quote's own settings
// and the current catalog. Results that do not fit storage are a
// validation error.
func (s *Service) price(ctx context.Context, q *Quote) error {
	catalog, err := s.catalog.PricingCatalog(ctx, q.ProductIDs())
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	settings := s.cfg.Defaults.Settings(q.PricingTier, q.MarkupPercent, q.WastePercent, q.LabourRate)

	in := pricing.Quote{Sections: make([]pricing.Section, len(q.Sections))}
	for i, sec := range q.Sections {
		lines := make([]pricing.LineItem, len(sec.Lines))
		for j, l := range sec.Lines {
			if p := pricing.Lookup(catalog, l.LineItem); p != nil && l.Description == "" {
				l.Description = p.Description
			}
			lines[j] = l.LineItem
		}
		in.Sections[i] = pricing.Section{Name: sec.Name, Lines: lines}
	}

	out := pricing.RecalculateQuote(in, catalog, settings)
	for i := range q.Sections {
		for j := range q.Sections[i].Lines {
			q.Sections[i].Lines[j].LineItem = out.Sections[i].Lines[j]
		}
	}
	q.Totals = out.Totals
	return checkPriced(*q)
}

// settings resolves quote-wide pricing inputs. Non-custom tiers record the
// table markup; the custom tier requires an explicit markup. Values that do
// not fit the stored columns are rejected.
func (s *Service) settings(rawTier string, markup, waste, labour *Amount) (pricing.Tier, pricing.Settings, error) {
	tier := pricing.TierRetail
	if strings.TrimSpace(rawTier) != "" {
		tier = pricing.ParseTier(rawTier)
	}
	if tier == pricing.TierCustom && markup == nil {
		return "", pricing.Settings{}, &httpx.ValidationError{Fields: map[string]string{"markup_percent": "is required for the Custom tier"}}
	}
	d := s.cfg.Defaults
	settings := d.Settings(tier, amountOr(markup, decimal.Zero), amountOr(waste, d.WastePercent), amountOr(labour, d.LabourRate))
	settings.MarkupPercent = settings.Markup()
	if err := checkSettings(settings.MarkupPercent, settings.WastePercent, settings.LabourRate); err != nil {
		return "", pricing.Settings{}, err
	}
	return tier, settings, nil
}

func (s *Service) advancePipeline(ctx context.Context, q Quote) {
	if s.pipeline == nil || q.OpportunityID == nil {
		return
	}
	var stage opportunities.Stage
	switch q.Status {
	case StatusSent:
		stage = opportunities.StageQuoted
	case StatusAccepted:
		stage = opportunities.StageWon
	default:
		return
	}
	if _, err := s.pipeline.Advance(ctx, *q.OpportunityID, stage); err != nil {
		s.logger.Warn("advance opportunity",
			slog.Int64("quote_id", q.ID),
			slog.Int64("opportunity_id", *q.OpportunityID),
			slog.Any("error", err))
	}
}

func (s *Service) saved(ctx context.Context, action string, q Quote) {
	if s.metrics != nil {
		s.metrics.QuoteSaved(string(q.Status))
	}
	s.record(ctx, action, q.ID)
}

func (s *Service) record(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "quote", EntityID: strconv.FormatInt(id, 10)}); err != nil {
		s.logger.Warn("audit quote", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
