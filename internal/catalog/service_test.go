package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/shared"
)

type mockRepository struct {
	products  map[int64]Product
	types     map[int64]ApplicationType
	nextID    int64
	listCalls int
	listErr   error
	upsertErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		products: map[int64]Product{},
		types:    map[int64]ApplicationType{},
		nextID:   1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) List(_ context.Context, f ListFilters) ([]Product, int, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []Product
	for id := int64(1); id < m.nextID; id++ {
		p, ok := m.products[id]
		if !ok {
			continue
		}
		if f.Active != nil && p.IsActive != *f.Active {
			continue
		}
		if f.Labour != nil && p.IsLabour != *f.Labour {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Description), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %d: %w", id, httpx.ErrNotFound)
	}
	return p, nil
}

func (m *mockRepository) GetMany(_ context.Context, ids []int64) ([]Product, error) {
	var out []Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, p Product) (int64, error) {
	for _, existing := range m.products {
		if strings.EqualFold(existing.SKU, p.SKU) {
			return 0, httpx.ErrDuplicate
		}
	}
	p.ID = m.nextID
	m.nextID++
	m.products[p.ID] = p
	return p.ID, nil
}

func (m *mockRepository) Update(_ context.Context, p Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return httpx.ErrNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *mockRepository) SetActive(_ context.Context, id int64, active bool) error {
	p, ok := m.products[id]
	if !ok {
		return httpx.ErrNotFound
	}
	p.IsActive = active
	m.products[id] = p
	return nil
}

func (m *mockRepository) UpsertBySKU(ctx context.Context, p Product) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	for id, existing := range m.products {
		if strings.EqualFold(existing.SKU, p.SKU) {
			p.ID = id
			m.products[id] = p
			return false, nil
		}
	}
	_, err := m.Create(ctx, p)
	return err == nil, err
}

func (m *mockRepository) ListApplicationTypes(context.Context) ([]ApplicationType, error) {
	var out []ApplicationType
	for _, t := range m.types {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockRepository) EnsureApplicationType(_ context.Context, name, color string) (int64, error) {
	for id, t := range m.types {
		if strings.EqualFold(t.Name, name) {
			return id, nil
		}
	}
	id := int64(len(m.types) + 1)
	if color == "" {
		color = defaultColor
	}
	m.types[id] = ApplicationType{ID: id, Name: name, Color: color}
	return id, nil
}

type countingObserver struct {
	results []string
}

func (o *countingObserver) CatalogCache(result string) {
	o.results = append(o.results, result)
}

type recordingAuditor struct {
	logs []shared.AuditLog
}

func (a *recordingAuditor) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(t *testing.T, repo Repository) (*Service, *countingObserver, *recordingAuditor) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	observer := &countingObserver{}
	auditor := &recordingAuditor{}
	return NewService(repo, NewCache(client, time.Minute), observer, auditor, nil), observer, auditor
}

func seedProduct(repo *mockRepository, sku, desc string, labour, active bool) Product {
	p := Product{
		SKU:         sku,
		Description: desc,
		PackPrice:   decimal.NewFromInt(120),
		PackSize:    decimal.RequireFromString("4.5"),
		IsLabour:    labour,
		IsActive:    active,
	}
	id, _ := repo.Create(context.Background(), p)
	p.ID = id
	return p
}

func TestCreateProductValidation(t *testing.T) {
	svc, _, _ := newTestService(t, newMockRepository())
	ctx := context.Background()

	_, err := svc.Create(ctx, ProductRequest{Description: "Batts"})
	var verr *httpx.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "sku")

	_, err = svc.Create(ctx, ProductRequest{SKU: "B1", Description: "Batts", PackPrice: decimal.NewFromInt(-1)})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must not be negative", verr.Fields["pack_price"])
	assert.True(t, errors.Is(err, httpx.ErrValidation))
}

func TestCreateProductDefaultsPackSize(t *testing.T) {
	svc, _, auditor := newTestService(t, newMockRepository())

	p, err := svc.Create(context.Background(), ProductRequest{SKU: "B1", Description: "Batts", PackPrice: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.True(t, p.PackSize.Equal(decimal.NewFromInt(1)))
	assert.True(t, p.IsActive)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, "catalog.product.create", auditor.logs[0].Action)
}

func TestUpdateKeepsActiveFlagWhenOmitted(t *testing.T) {
	repo := newMockRepository()
	seeded := seedProduct(repo, "B1", "Batts", false, false)
	svc, _, _ := newTestService(t, repo)

	p, err := svc.Update(context.Background(), seeded.ID, ProductRequest{SKU: "B1", Description: "Batts R3.6", PackPrice: decimal.NewFromInt(99)})
	require.NoError(t, err)
	assert.False(t, p.IsActive)
	assert.Equal(t, "Batts R3.6", p.Description)

	_, err = svc.Update(context.Background(), 99, ProductRequest{SKU: "X", Description: "X"})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestPickerCachesAndFiltersLabour(t *testing.T) {
	repo := newMockRepository()
	seedProduct(repo, "B1", "Ceiling batts", false, true)
	seedProduct(repo, "L1", "Install labour", true, true)
	seedProduct(repo, "OLD", "Retired batts", false, false)
	svc, observer, _ := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.Picker(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "B1", first[0].SKU)

	second, err := svc.Picker(ctx)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, []string{"miss", "hit"}, observer.results)
}

func TestPickerInvalidatedOnChange(t *testing.T) {
	repo := newMockRepository()
	seeded := seedProduct(repo, "B1", "Ceiling batts", false, true)
	svc, _, _ := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Picker(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, seeded.ID))

	products, err := svc.Picker(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 2, repo.listCalls)
}

func TestWarmPickerReloads(t *testing.T) {
	repo := newMockRepository()
	seedProduct(repo, "B1", "Ceiling batts", false, true)
	svc, _, _ := newTestService(t, repo)

	n, err := svc.WarmPicker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = svc.WarmPicker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, repo.listCalls)
}

func TestPickerWithoutCache(t *testing.T) {
	repo := newMockRepository()
	repo.listErr = errors.New("db down")
	svc := NewService(repo, nil, nil, nil, nil)

	_, err := svc.Picker(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestPricingCatalogIncludesInactive(t *testing.T) {
	repo := newMockRepository()
	active := seedProduct(repo, "B1", "Batts", false, true)
	retired := seedProduct(repo, "B2", "Old batts", false, false)
	svc, _, _ := newTestService(t, repo)

	catalog, err := svc.PricingCatalog(context.Background(), []int64{active.ID, retired.ID, active.ID, 0, 77})
	require.NoError(t, err)
	assert.Len(t, catalog, 2)
	p, ok := catalog.Product(retired.ID)
	require.True(t, ok)
	assert.True(t, p.PackPrice.Equal(decimal.NewFromInt(120)))
}

func TestImportUpsertsBySKU(t *testing.T) {
	repo := newMockRepository()
	seedProduct(repo, "B1", "Batts", false, true)
	svc, _, auditor := newTestService(t, repo)

	csvData := "SKU,Description,Pack Price,Pack Size,Application Type\n" +
		"B1,Ceiling batts R3.6,130,4.5,Ceiling\n" +
		"W1,Wall batts R2.6,95,6,Wall\n" +
		",Missing sku,10,1,\n"
	result, err := svc.Import(context.Background(), "prices.csv", strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Row)
	assert.Len(t, repo.types, 2)

	p, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Ceiling batts R3.6", p.Description)
	require.NotNil(t, p.ApplicationTypeID)

	require.Len(t, auditor.logs, 1)
	assert.Equal(t, "catalog.import", auditor.logs[0].Action)
}

func TestImportRejectsUnreadableFile(t *testing.T) {
	svc, _, _ := newTestService(t, newMockRepository())

	_, err := svc.Import(context.Background(), "prices.csv", bytes.NewReader(nil))
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Import(context.Background(), "prices.csv", strings.NewReader("name,colour\nx,y\n"))
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestImportRollsBackOnRepositoryFailure(t *testing.T) {
	repo := newMockRepository()
	repo.upsertErr = errors.New("constraint")
	svc, _, auditor := newTestService(t, repo)

	_, err := svc.Import(context.Background(), "prices.csv", io.NopCloser(strings.NewReader("sku,description,pack_price\nB1,Batts,10\n")))
	assert.ErrorContains(t, err, "row 2")
	assert.Empty(t, auditor.logs)
}
