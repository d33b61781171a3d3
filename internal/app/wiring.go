package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/thermaquote/thermaquote/internal/auth"
	"github.com/thermaquote/thermaquote/internal/catalog"
	"github.com/thermaquote/thermaquote/internal/crm/companies"
	"github.com/thermaquote/thermaquote/internal/crm/contacts"
	"github.com/thermaquote/thermaquote/internal/crm/opportunities"
	"github.com/thermaquote/thermaquote/internal/observability"
	"github.com/thermaquote/thermaquote/internal/quotes"
	"github.com/thermaquote/thermaquote/internal/shared"
)

// SessionCookieName is the cookie carrying the session id.
const SessionCookieName = "thermaquote_session"

// Services holds the domain services shared by the HTTP server, the worker
// and the CLI.
type Services struct {
	Auth          *auth.Service
	Catalog       *catalog.Service
	Companies     *companies.Service
	Contacts      *contacts.Service
	Opportunities *opportunities.Service
	Quotes        *quotes.Service
	Exporter      *quotes.Exporter
}

// BuildServices wires repositories and services over pool and redisClient.
// metrics may be nil.
func BuildServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) *Services {
	auditLogger := shared.NewAuditLogger(pool)

	var cache catalog.PickerStore
	if redisClient != nil {
		cache = catalog.NewCache(redisClient, cfg.CatalogCacheTTL)
	}
	var observer catalog.CacheObserver
	if metrics != nil {
		observer = metrics
	}
	catalogService := catalog.NewService(catalog.NewRepository(pool), cache, observer, auditLogger, logger)

	opportunityService := opportunities.NewService(opportunities.NewRepository(pool), auditLogger)

	quoteService := quotes.NewService(quotes.NewRepository(pool), catalogService, quotes.Config{
		Defaults: cfg.PricingDefaults(),
		Validity: cfg.QuoteValidity(),
	}, logger)
	quoteService.SetIdempotency(shared.NewIdempotencyStore(pool))
	quoteService.SetPipeline(opportunityService)
	quoteService.SetAudit(auditLogger)
	if metrics != nil {
		quoteService.SetMetrics(metrics)
	}

	return &Services{
		Auth:          auth.NewService(auth.NewRepository(pool)),
		Catalog:       catalogService,
		Companies:     companies.NewService(companies.NewRepository(pool), auditLogger),
		Contacts:      contacts.NewService(contacts.NewRepository(pool), auditLogger),
		Opportunities: opportunityService,
		Quotes:        quoteService,
		Exporter: quotes.NewExporter(quotes.ExportConfig{
			BusinessName: cfg.BusinessName,
			Currency:     cfg.Currency,
			Locale:       cfg.Locale,
			TaxRate:      cfg.TaxRate,
		}),
	}
}

// RouterParams fills the handler fields of params from the services.
func (s *Services) RouterParams(params RouterParams) RouterParams {
	params.AuthHandler = auth.NewHandler(params.Logger, s.Auth, params.SessionManager, params.CSRFManager, LoginRateLimit())
	params.CatalogHandler = catalog.NewHandler(params.Logger, s.Catalog)
	params.CompaniesHandler = companies.NewHandler(params.Logger, s.Companies)
	params.ContactsHandler = contacts.NewHandler(params.Logger, s.Contacts)
	params.OpportunitiesHandler = opportunities.NewHandler(params.Logger, s.Opportunities)
	params.QuotesHandler = quotes.NewHandler(params.Logger, s.Quotes, s.Exporter)
	return params
}
