package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielvasquez-dev/marketplace-billing/api/routes"
	"github.com/danielvasquez-dev/marketplace-billing/internal/commission"
	"github.com/danielvasquez-dev/marketplace-billing/internal/lookup"
	"github.com/danielvasquez-dev/marketplace-billing/internal/payments"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/config"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/db"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/metrics"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/migrate"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/paypal"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/pubsub"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/redis"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/request"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	chargeMetrics := metrics.NewChargeMetrics(registry)

	gateway, err := paypal.NewClient(ctx, cfg.PayPal, logg)
	if err != nil {
		logg.Error(ctx, "failed to create gateway client", err)
		os.Exit(1)
	}

	accountRepo := lookup.NewAccountRepository(dbClient.DB())
	paymentRepo := payments.NewRepository(dbClient.DB())

	lookupSvc, err := lookup.NewService(lookup.ServiceParams{
		Accounts: accountRepo,
		Payments: paymentRepo,
	})
	if err != nil {
		logg.Error(ctx, "failed to create lookup service", err)
		os.Exit(1)
	}

	chargeLock, err := commission.NewRedisChargeLock(redisClient, cfg.Charge.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create charge lock", err)
		os.Exit(1)
	}

	commissionSvc, err := commission.NewService(commission.ServiceParams{
		Lookup:   lookupSvc,
		Payments: paymentRepo,
		Gateway:  gateway,
		Lock:     chargeLock,
		Logger:   logg,
		Metrics:  chargeMetrics,
		Policy: request.Policy{
			CodesToRetry: cfg.Charge.RetryCodes,
			TryMax:       cfg.Charge.TryMax,
			Delay:        cfg.Charge.RetryDelay,
		},
		Currency: cfg.PayPal.Currency,
	})
	if err != nil {
		logg.Error(ctx, "failed to create commission service", err)
		os.Exit(1)
	}

	processRegistry, err := commission.NewRedisRegistry(redisClient, cfg.Charge.ProcessTTL)
	if err != nil {
		logg.Error(ctx, "failed to create process registry", err)
		os.Exit(1)
	}

	sink, cleanup, err := buildSink(ctx, cfg, logg, chargeMetrics, commissionSvc, processRegistry)
	if err != nil {
		logg.Error(ctx, "failed to create charge dispatcher", err)
		os.Exit(1)
	}
	defer cleanup()

	dispatcher, err := commission.NewDispatcher(commission.DispatcherParams{
		Registry: processRegistry,
		Sink:     sink,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create dispatcher", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisClient,
		Accounts:   accountRepo,
		Commission: commissionSvc,
		Dispatcher: dispatcher,
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(logCtx, "api server stopped")
}

// buildSink picks the async dispatch backend: an in-process worker pool by
// default, or the Pub/Sub topic when dispatch mode is "pubsub" (jobs are then
// executed by cmd/worker).
func buildSink(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	chargeMetrics *metrics.ChargeMetrics,
	svc *commission.Service,
	registry commission.Registry,
) (commission.JobSink, func(), error) {
	if cfg.Dispatch.Mode == "pubsub" {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, nil, err
		}
		publisher, err := commission.NewPublisher(psClient.ChargePublisher(), logg)
		if err != nil {
			_ = psClient.Close()
			return nil, nil, err
		}
		return publisher, func() { _ = psClient.Close() }, nil
	}

	runner, err := commission.NewRunner(commission.RunnerParams{
		Service:  svc,
		Registry: registry,
		Logger:   logg,
	})
	if err != nil {
		return nil, nil, err
	}
	pool, err := commission.NewPool(cfg.Dispatch, runner, logg, chargeMetrics)
	if err != nil {
		return nil, nil, err
	}

	poolCtx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = pool.Run(poolCtx)
	}()
	return pool, cancel, nil
}
