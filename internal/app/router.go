package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/thermaquote/thermaquote/internal/auth"
	"github.com/thermaquote/thermaquote/internal/catalog"
	"github.com/thermaquote/thermaquote/internal/crm/companies"
	"github.com/thermaquote/thermaquote/internal/crm/contacts"
	"github.com/thermaquote/thermaquote/internal/crm/opportunities"
	"github.com/thermaquote/thermaquote/internal/observability"
	"github.com/thermaquote/thermaquote/internal/quotes"
	"github.com/thermaquote/thermaquote/internal/shared"
	"github.com/thermaquote/thermaquote/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	SessionManager       *shared.SessionManager
	CSRFManager          *shared.CSRFManager
	AuthHandler          *auth.Handler
	CatalogHandler       *catalog.Handler
	CompaniesHandler     *companies.Handler
	ContactsHandler      *contacts.Handler
	OpportunitiesHandler *opportunities.Handler
	QuotesHandler        *quotes.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with ThermaQuote defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.QuotesHandler != nil {
		r.Route("/shared/quotes", params.QuotesHandler.MountPublicRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
		if params.CompaniesHandler != nil {
			r.Route("/crm/companies", params.CompaniesHandler.MountRoutes)
		}
		if params.ContactsHandler != nil {
			r.Route("/crm/contacts", params.ContactsHandler.MountRoutes)
		}
		if params.OpportunitiesHandler != nil {
			r.Route("/crm/opportunities", params.OpportunitiesHandler.MountRoutes)
		}
		if params.QuotesHandler != nil {
			r.Route("/quotes", params.QuotesHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
