package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielvasquez-dev/marketplace-billing/api/controllers"
	"github.com/danielvasquez-dev/marketplace-billing/api/middleware"
	"github.com/danielvasquez-dev/marketplace-billing/internal/commission"
	"github.com/danielvasquez-dev/marketplace-billing/internal/lookup"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/config"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
	pkgredis "github.com/danielvasquez-dev/marketplace-billing/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on. Optional
// fields degrade gracefully: a nil Redis skips the idempotency guard and the
// readiness probe for it, a nil Metrics falls back to the default registry.
type RouterParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         controllers.Pinger
	Redis      *pkgredis.Client
	Accounts   *lookup.AccountRepository
	Commission *commission.Service
	Dispatcher *commission.Dispatcher
	Metrics    http.Handler
}

// NewRouter builds the chi router for the billing API.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID(logg))
	r.Use(middleware.Logging(logg))
	r.Use(middleware.Recoverer(logg))

	var redisPinger controllers.Pinger
	var idempotencyStore pkgredis.IdempotencyStore
	var rateLimitStore pkgredis.RateLimitStore
	if params.Redis != nil {
		redisPinger = params.Redis
		idempotencyStore = params.Redis
		rateLimitStore = params.Redis
	}

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, params.DB, redisPinger, logg))

	metricsHandler := params.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())

		r.Route("/billing-agreements/{communityID}/{personID}", func(r chi.Router) {
			r.Get("/", controllers.GetBillingAgreement(params.Accounts, logg))
			r.With(
				middleware.ChargeRateLimit(rateLimitStore, cfg.Charge.RateLimit, cfg.Charge.RateLimitWindow, logg),
				middleware.Idempotency(idempotencyStore, logg),
			).Post("/charge-commission", controllers.ChargeCommission(params.Commission, params.Dispatcher, logg))
		})

		r.Get("/processes/{token}", controllers.GetProcess(params.Dispatcher, logg))
	})

	return r
}
