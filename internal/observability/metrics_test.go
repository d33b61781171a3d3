package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/quotes/{id}")

	req := httptest.NewRequest(http.MethodGet, "/quotes/4", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `thermaquote_http_requests_total{code="418",route="/quotes/{id}"} 1`)
	assert.Contains(t, body, `thermaquote_http_request_duration_seconds_bucket{route="/quotes/{id}"`)
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()

	metrics.QuoteSaved("DRAFT")
	metrics.QuoteSaved("DRAFT")
	metrics.QuoteSaved("SENT")
	metrics.CatalogCache(CacheMiss)
	metrics.CatalogCache(CacheHit)
	metrics.CatalogCache(CacheHit)

	body := scrape(t, metrics)
	assert.Contains(t, body, `thermaquote_quotes_saved_total{status="DRAFT"} 2`)
	assert.Contains(t, body, `thermaquote_quotes_saved_total{status="SENT"} 1`)
	assert.Contains(t, body, `thermaquote_catalog_cache_total{result="hit"} 2`)
	assert.Contains(t, body, `thermaquote_catalog_cache_total{result="miss"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.QuoteSaved("DRAFT")
	m.CatalogCache(CacheHit)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rr = httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
