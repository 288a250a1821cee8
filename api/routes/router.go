package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/duzelt/duzelt-backend/api/controllers"
	webhookcontrollers "github.com/duzelt/duzelt-backend/api/controllers/webhooks"
	"github.com/duzelt/duzelt-backend/api/middleware"
	"github.com/duzelt/duzelt-backend/internal/billing"
	"github.com/duzelt/duzelt-backend/internal/correction"
	"github.com/duzelt/duzelt-backend/internal/entitlements"
	"github.com/duzelt/duzelt-backend/internal/plans"
	"github.com/duzelt/duzelt-backend/internal/profiles"
	"github.com/duzelt/duzelt-backend/internal/usage"
	stripewebhook "github.com/duzelt/duzelt-backend/internal/webhooks/stripe"
	"github.com/duzelt/duzelt-backend/pkg/config"
	"github.com/duzelt/duzelt-backend/pkg/db"
	"github.com/duzelt/duzelt-backend/pkg/logger"
	"github.com/duzelt/duzelt-backend/pkg/redis"
	"github.com/duzelt/duzelt-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry prometheus.Gatherer,
	profileService *profiles.Service,
	usageService *usage.Service,
	catalog *plans.Catalog,
	entitlementService *entitlements.Service,
	correctionService *correction.Service,
	billingService *billing.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.URL),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// Stripe calls this endpoint directly; the signature check replaces
	// bearer auth.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Identity, logg))

		correctionsLimiter := middleware.RateLimit(
			redisClient,
			"corrections",
			cfg.RateLimit.CorrectionsLimit,
			cfg.RateLimit.CorrectionsWindow,
			logg,
		)
		r.With(correctionsLimiter).Post("/corrections", controllers.Corrections(entitlementService, correctionService, logg))
		r.Get("/usage", controllers.Usage(profileService, usageService, catalog, logg))
		r.Get("/profile", controllers.Profile(profileService, logg))

		r.Route("/billing", func(r chi.Router) {
			r.Post("/checkout", controllers.BillingCheckout(billingService, logg))
			r.Post("/portal", controllers.BillingPortal(billingService, logg))
		})
	})

	return r
}
