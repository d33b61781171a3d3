package companies

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/shared"
)

type mockRepository struct {
	companies map[int64]Company
	nextID    int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{companies: map[int64]Company{}, nextID: 1}
}

func (m *mockRepository) List(_ context.Context, f ListFilters) ([]Company, int, error) {
	var out []Company
	for id := int64(1); id < m.nextID; id++ {
		c, ok := m.companies[id]
		if !ok {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return Company{}, fmt.Errorf("company %d: %w", id, httpx.ErrNotFound)
	}
	return c, nil
}

func (m *mockRepository) Create(_ context.Context, c Company) (int64, error) {
	for _, existing := range m.companies {
		if strings.EqualFold(existing.Name, c.Name) {
			return 0, httpx.ErrDuplicate
		}
	}
	c.ID = m.nextID
	m.nextID++
	m.companies[c.ID] = c
	return c.ID, nil
}

func (m *mockRepository) Update(_ context.Context, c Company) error {
	if _, ok := m.companies[c.ID]; !ok {
		return httpx.ErrNotFound
	}
	m.companies[c.ID] = c
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	if _, ok := m.companies[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.companies, id)
	return nil
}

type recordingAuditor struct{ actions []string }

func (a *recordingAuditor) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func setup(t *testing.T) (http.Handler, *mockRepository, *recordingAuditor) {
	t.Helper()
	repo := newMockRepository()
	auditor := &recordingAuditor{}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo, auditor))
	r := chi.NewRouter()
	r.Route("/crm/companies", h.MountRoutes)
	return r, repo, auditor
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestCompanyLifecycle(t *testing.T) {
	router, repo, auditor := setup(t)

	rec := do(router, http.MethodPost, "/crm/companies", `{"name":"  Kiwi Homes ","email":"ops@kiwihomes.nz"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Company
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Kiwi Homes", created.Name)

	rec = do(router, http.MethodPut, fmt.Sprintf("/crm/companies/%d", created.ID), `{"name":"Kiwi Homes Ltd","phone":"09 555 0100"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "09 555 0100", repo.companies[created.ID].Phone)

	rec = do(router, http.MethodGet, "/crm/companies?search=kiwi", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list httpx.List[Company]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	rec = do(router, http.MethodDelete, fmt.Sprintf("/crm/companies/%d", created.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(router, http.MethodGet, fmt.Sprintf("/crm/companies/%d", created.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{"crm.company.create", "crm.company.update", "crm.company.delete"}, auditor.actions)
}

func TestCompanyValidation(t *testing.T) {
	router, _, _ := setup(t)

	rec := do(router, http.MethodPost, "/crm/companies", `{"name":"","email":"nope"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "is required", problem.Fields["name"])
	assert.Equal(t, "must be a valid email", problem.Fields["email"])

	rec = do(router, http.MethodPost, "/crm/companies", `{"name":"A","unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompanyDuplicateName(t *testing.T) {
	router, _, _ := setup(t)
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/crm/companies", `{"name":"Acme"}`).Code)
	assert.Equal(t, http.StatusConflict, do(router, http.MethodPost, "/crm/companies", `{"name":"acme"}`).Code)
}
