package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielvasquez-dev/marketplace-billing/internal/commission"
	"github.com/danielvasquez-dev/marketplace-billing/internal/lookup"
	"github.com/danielvasquez-dev/marketplace-billing/internal/payments"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/config"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/db"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/instance"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/metrics"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/paypal"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/pubsub"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/redis"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/request"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	logg.Info(logCtx, "starting charge worker")

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

	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := psClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	gateway, err := paypal.NewClient(ctx, cfg.PayPal, logg)
	if err != nil {
		logg.Error(ctx, "failed to create gateway client", err)
		os.Exit(1)
	}

	chargeMetrics := metrics.NewChargeMetrics(prometheus.NewRegistry())

	lookupSvc, err := lookup.NewService(lookup.ServiceParams{
		Accounts: lookup.NewAccountRepository(dbClient.DB()),
		Payments: payments.NewRepository(dbClient.DB()),
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
		Payments: payments.NewRepository(dbClient.DB()),
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

	registry, err := commission.NewRedisRegistry(redisClient, cfg.Charge.ProcessTTL)
	if err != nil {
		logg.Error(ctx, "failed to create process registry", err)
		os.Exit(1)
	}

	runner, err := commission.NewRunner(commission.RunnerParams{
		Service:  commissionSvc,
		Registry: registry,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create job runner", err)
		os.Exit(1)
	}

	consumer, err := commission.NewConsumer(runner, psClient.ChargeSubscription(), logg)
	if err != nil {
		logg.Error(ctx, "failed to create charge consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		PubSub:         psClient,
		ChargeConsumer: consumer,
	})
	if err != nil {
		logg.Error(ctx, "failed to build worker service", err)
		os.Exit(1)
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(logCtx, "worker shutting down gracefully")
}
