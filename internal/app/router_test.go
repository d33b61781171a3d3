package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaquote/thermaquote/internal/auth"
	"github.com/thermaquote/thermaquote/internal/catalog"
	"github.com/thermaquote/thermaquote/internal/observability"
	"github.com/thermaquote/thermaquote/internal/platform/httpx"
	"github.com/thermaquote/thermaquote/internal/shared"
)

type noUsers struct{}

func (noUsers) FindByEmail(context.Context, string) (*auth.User, error) {
	return nil, httpx.ErrNotFound
}
func (noUsers) FindByID(context.Context, int64) (*auth.User, error)  { return nil, httpx.ErrNotFound }
func (noUsers) CreateUser(context.Context, auth.User) (int64, error) { return 0, nil }
func (noUsers) CreateSession(context.Context, string, int64, time.Time, string, string) error {
	return nil
}
func (noUsers) DeleteSession(context.Context, string) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "production", AppRequestTimeout: time.Second}
	sessions := shared.NewSessionManager(client, SessionCookieName, time.Hour, false)
	csrf := shared.NewCSRFManager("secret")

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		AuthHandler:    auth.NewHandler(logger, auth.NewService(noUsers{}), sessions, csrf, nil),
		CatalogHandler: catalog.NewHandler(logger, nil),
		Metrics:        observability.NewMetrics(),
	})
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader("{}"))
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthz(t *testing.T) {
	rec := serve(newTestRouter(t), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouterRequiresUser(t *testing.T) {
	rec := serve(newTestRouter(t), http.MethodGet, "/catalog/products")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterRejectsMissingCSRF(t *testing.T) {
	rec := serve(newTestRouter(t), http.MethodPost, "/auth/login")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterMetrics(t *testing.T) {
	router := newTestRouter(t)
	serve(router, http.MethodGet, "/healthz")

	rec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "thermaquote_http_requests_total")
}
