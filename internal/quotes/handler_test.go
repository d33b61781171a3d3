package quotes

import (
	"bytes"
	"context"
	"encoding/json"
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
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	svc.SetIdempotency(newMockIdempotency())
	exporter := NewExporter(ExportConfig{BusinessName: "Test Insulation", Currency: "NZD", Locale: "en-NZ", TaxRate: dec("0.15")})
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, exporter)
	r := chi.NewRouter()
	r.Route("/quotes", h.MountRoutes)
	r.Route("/shared/quotes", h.MountPublicRoutes)
	return r, svc
}

const createBody = `{
  "client_name": "Harbour View Homes",
  "pricing_tier": "Retail",
  "sections": [
    {"name": "Ceiling", "color": "#0ea5e9", "lines": [{"product_id": 1, "area": "20"}]},
    {"name": "Labour", "lines": [{"is_labour": true, "description": "Install", "area": 15}]}
  ]
}`

func do(router http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndReplay(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(router, http.MethodPost, "/quotes", createBody, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "1005", created.Totals.TotalSellExTax.String())

	rec = do(router, http.MethodPost, "/quotes", createBody, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	var replayed Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replayed))
	assert.Equal(t, created.ID, replayed.ID)
}

func TestHandlerCreateValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(router, http.MethodPost, "/quotes", `{"client_name": ""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Contains(t, problem.Fields, "client_name")

	rec = do(router, http.MethodPost, "/quotes", `{"client_name": "x", "bogus": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerPreview(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(router, http.MethodPost, "/quotes/preview", createBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var q Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Zero(t, q.ID)
	assert.Equal(t, "1155.75", q.Totals.TotalIncTax.String())
}

func TestHandlerSelectProduct(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(router, http.MethodPost, "/quotes/preview/select-product",
		`{"pricing_tier":"Custom","markup_percent":25,"product_id":1,"index":0,"lines":[{"area":"20"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res SelectProductResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Lines, 2)
	assert.Equal(t, "750", res.Lines[0].LineSell.String())
	assert.Equal(t, "20", res.Lines[0].MarginPercent.String())
}

func TestHandlerStatusFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(router, http.MethodPost, "/quotes", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(router, http.MethodPost, "/quotes/1/status", `{"status":"ACCEPTED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(router, http.MethodPost, "/quotes/1/status", `{"status":"ARCHIVED"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/quotes/1/status", `{"status":"SENT"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodPut, "/quotes/1", createBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(router, http.MethodGet, "/quotes?status=sent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list httpx.List[Quote]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestHandlerNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/quotes/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/quotes/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/shared/quotes/nope", "").Code)
}

func TestHandlerExports(t *testing.T) {
	router, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/quotes", createBody).Code)

	rec := do(router, http.MethodGet, "/quotes/1/export.pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypePDF, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Q-2503-0001.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = do(router, http.MethodGet, "/quotes/1/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestHandlerSharedHidesCosting(t *testing.T) {
	router, svc := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/quotes", createBody).Code)
	require.Equal(t, http.StatusOK, do(router, http.MethodPost, "/quotes/1/status", `{"status":"SENT"}`).Code)

	q, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)

	rec := do(router, http.MethodGet, "/shared/quotes/"+q.ShareToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Totals.TotalCostExTax.IsZero())
	assert.True(t, view.Sections[0].Lines[0].LineCost.IsZero())
	assert.Equal(t, "960", view.Sections[0].Lines[0].LineSell.String())
}
