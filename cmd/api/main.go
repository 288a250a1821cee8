package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/duzelt/duzelt-backend/api/routes"
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
	"github.com/duzelt/duzelt-backend/pkg/metrics"
	"github.com/duzelt/duzelt-backend/pkg/migrate"
	"github.com/duzelt/duzelt-backend/pkg/ollama"
	"github.com/duzelt/duzelt-backend/pkg/redis"
	"github.com/duzelt/duzelt-backend/pkg/stripe"
)

// webhookReplayTTL bounds how long a processed Stripe event id is
// remembered. Stripe retries for up to three days.
const webhookReplayTTL = 72 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	ollamaClient, err := ollama.NewClient(cfg.Ollama)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap ollama", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	correctionMetrics := metrics.NewCorrectionMetrics(registry)

	profileSvc, err := profiles.NewService(profiles.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create profiles service", err)
		os.Exit(1)
	}

	usageSvc, err := usage.NewService(usage.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	catalog := plans.NewCatalog(cfg.Stripe)

	entitlementSvc, err := entitlements.NewService(entitlements.ServiceParams{
		Profiles: profileSvc,
		Ledger:   usageSvc,
		Catalog:  catalog,
		Metrics:  correctionMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlements service", err)
		os.Exit(1)
	}

	correctionSvc, err := correction.NewService(correction.ServiceParams{
		Backend: ollamaClient,
		Logger:  logg,
		Metrics: correctionMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create correction service", err)
		os.Exit(1)
	}

	billingSvc, err := billing.NewServiceFromConfig(cfg, stripeClient, profileSvc, catalog)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Profiles: profileSvc,
		Stripe:   stripeClient,
		Catalog:  catalog,
		Logger:   logg,
		Metrics:  correctionMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookReplayTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			profileSvc,
			usageSvc,
			catalog,
			entitlementSvc,
			correctionSvc,
			billingSvc,
			stripeClient,
			webhookSvc,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
