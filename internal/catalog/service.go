package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/thermaquote/thermaquote/internal/observability"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/pricing"
	"github.com/thermaquote/thermaquote/internal/shared"
)

// PickerStore caches the product picker list.
type PickerStore interface {
	PickerKey(ctx context.Context) (string, error)
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Bump(ctx context.Context) error
}

// CacheObserver receives cache hit/miss notifications.
type CacheObserver interface {
	CatalogCache(result string)
}

// Auditor records catalog mutations.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements catalog use cases.
type Service struct {
	repo     Repository
	cache    PickerStore
	observer CacheObserver
	audit    Auditor
	logger   *slog.Logger
	group    singleflight.Group
}

// NewService wires the catalog service. cache, observer and audit may be nil.
func NewService(repo Repository, cache PickerStore, observer CacheObserver, audit Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, observer: observer, audit: audit, logger: logger}
}

// List returns products matching filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

// Get loads a single product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, req ProductRequest) (Product, error) {
	product, err := productFromRequest(req)
	if err != nil {
		return Product{}, err
	}
	id, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	s.changed(ctx, "catalog.product.create", id)
	return s.repo.Get(ctx, id)
}

// Update replaces the editable fields of a product.
func (s *Service) Update(ctx context.Context, id int64, req ProductRequest) (Product, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	product, err := productFromRequest(req)
	if err != nil {
		return Product{}, err
	}
	product.ID = id
	if req.IsActive == nil {
		product.IsActive = current.IsActive
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	s.changed(ctx, "catalog.product.update", id)
	return s.repo.Get(ctx, id)
}

// Deactivate hides a product from the picker. Existing quote lines keep it.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	s.changed(ctx, "catalog.product.deactivate", id)
	return nil
}

// Picker lists active, non-labour products for line selection.
func (s *Service) Picker(ctx context.Context) ([]Product, error) {
	if s.cache == nil {
		return s.loadPicker(ctx)
	}
	key, err := s.cache.PickerKey(ctx)
	if err != nil {
		s.logger.Warn("catalog cache version", slog.Any("error", err))
		return s.loadPicker(ctx)
	}
	var cached []Product
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		s.observe(observability.CacheHit)
		return cached, nil
	}
	s.observe(observability.CacheMiss)

	v, err, _ := s.group.Do(key, func() (any, error) {
		products, err := s.loadPicker(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, products); err != nil {
			s.logger.Warn("catalog cache store", slog.Any("error", err))
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Product), nil
}

// WarmPicker invalidates and refills the picker cache.
func (s *Service) WarmPicker(ctx context.Context) (int, error) {
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			return 0, fmt.Errorf("bump catalog cache: %w", err)
		}
	}
	products, err := s.Picker(ctx)
	if err != nil {
		return 0, err
	}
	return len(products), nil
}

// ApplicationTypes lists every application type.
func (s *Service) ApplicationTypes(ctx context.Context) ([]ApplicationType, error) {
	return s.repo.ListApplicationTypes(ctx)
}

// CreateApplicationType adds an application type, reusing an existing one
// with the same name.
func (s *Service) CreateApplicationType(ctx context.Context, req ApplicationTypeRequest) (ApplicationType, error) {
	if err := httpx.Validate(req); err != nil {
		return ApplicationType{}, err
	}
	name := cleanText(req.Name)
	id, err := s.repo.EnsureApplicationType(ctx, name, req.Color)
	if err != nil {
		return ApplicationType{}, fmt.Errorf("create application type: %w", err)
	}
	types, err := s.repo.ListApplicationTypes(ctx)
	if err != nil {
		return ApplicationType{}, err
	}
	for _, t := range types {
		if t.ID == id {
			return t, nil
		}
	}
	return ApplicationType{ID: id, Name: name, Color: req.Color}, nil
}

// PricingCatalog loads the products referenced by ids, active or not, in
// the form the calculator consumes.
func (s *Service) PricingCatalog(ctx context.Context, ids []int64) (pricing.CatalogMap, error) {
	products, err := s.repo.GetMany(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	out := make(pricing.CatalogMap, len(products))
	for _, p := range products {
		out[p.ID] = p.Pricing()
	}
	return out, nil
}

// Import upserts every usable row of a spreadsheet by SKU in one
// transaction. Rejected rows are reported and skipped.
func (s *Service) Import(ctx context.Context, fileName string, r io.Reader) (ImportResult, error) {
	rows, rowErrs, err := ParseProductRows(fileName, r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	result := ImportResult{Errors: rowErrs, Rows: rows}
	if len(rows) == 0 {
		return result, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		types := map[string]int64{}
		for _, row := range rows {
			product := Product{
				SKU:          row.SKU,
				Description:  row.Description,
				CostPrice:    row.CostPrice,
				PackPrice:    row.PackPrice,
				PackSize:     row.PackSize,
				WastePercent: row.WastePercent,
				IsLabour:     row.IsLabour,
				IsActive:     row.IsActive,
			}
			if name := row.ApplicationType; name != "" {
				id, ok := types[strings.ToLower(name)]
				if !ok {
					var err error
					if id, err = tx.EnsureApplicationType(ctx, name, ""); err != nil {
						return fmt.Errorf("row %d: %w", row.Row, err)
					}
					types[strings.ToLower(name)] = id
				}
				product.ApplicationTypeID = &id
			}
			created, err := tx.UpsertBySKU(ctx, product)
			if err != nil {
				return fmt.Errorf("row %d: %w", row.Row, err)
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("import catalog: %w", err)
	}

	s.invalidate(ctx)
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Action:   "catalog.import",
			Entity:   "catalog",
			EntityID: fileName,
			Meta:     map[string]any{"created": result.Created, "updated": result.Updated, "rejected": len(result.Errors)},
		}); err != nil {
			s.logger.Warn("audit catalog import", slog.Any("error", err))
		}
	}
	return result, nil
}

func (s *Service) loadPicker(ctx context.Context) ([]Product, error) {
	active, labour := true, false
	products, _, err := s.repo.List(ctx, ListFilters{Active: &active, Labour: &labour})
	if err != nil {
		return nil, fmt.Errorf("load picker: %w", err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func (s *Service) changed(ctx context.Context, action string, id int64) {
	s.invalidate(ctx)
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "product", EntityID: strconv.FormatInt(id, 10)}); err != nil {
		s.logger.Warn("audit product change", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("catalog cache bump", slog.Any("error", err))
	}
}

func (s *Service) observe(result string) {
	if s.observer != nil {
		s.observer.CatalogCache(result)
	}
}

func productFromRequest(req ProductRequest) (Product, error) {
	if err := httpx.Validate(req); err != nil {
		return Product{}, err
	}
	fields := map[string]string{}
	for name, value := range map[string]decimal.Decimal{
		"cost_price":    req.CostPrice,
		"pack_price":    req.PackPrice,
		"pack_size":     req.PackSize,
		"waste_percent": req.WastePercent,
	} {
		if value.IsNegative() {
			fields[name] = "must not be negative"
		}
	}
	if len(fields) > 0 {
		return Product{}, &httpx.ValidationError{Fields: fields}
	}
	packSize := req.PackSize
	if !packSize.IsPositive() {
		packSize = decimal.NewFromInt(1)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Product{
		SKU:               strings.TrimSpace(req.SKU),
		Description:       strings.TrimSpace(req.Description),
		CostPrice:         req.CostPrice,
		PackPrice:         req.PackPrice,
		PackSize:          packSize,
		WastePercent:      req.WastePercent,
		ApplicationTypeID: req.ApplicationTypeID,
		IsLabour:          req.IsLabour,
		IsActive:          active,
	}, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
