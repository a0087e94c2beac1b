package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/r2blaze/r2blaze-backend/internal/cron"
	"github.com/r2blaze/r2blaze-backend/internal/orders"
	"github.com/r2blaze/r2blaze-backend/internal/payments"
	"github.com/r2blaze/r2blaze-backend/pkg/config"
	"github.com/r2blaze/r2blaze-backend/pkg/db"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/metrics"
	"github.com/r2blaze/r2blaze-backend/pkg/migrate"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox"
	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
	"github.com/r2blaze/r2blaze-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	bootCtx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(bootCtx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(bootCtx, "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Env:         cfg.App.Env,
	})

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		logg.Error(bootCtx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		logg.Error(bootCtx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing redis", err)
		}
	}()

	service, err := buildService(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(bootCtx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Service, error) {
	processor, err := paystack.NewClient(cfg.Paystack)
	if err != nil {
		return nil, fmt.Errorf("paystack client: %w", err)
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		DB:      dbClient,
		Orders:  orderRepo,
		Outbox:  outbox.NewService(outboxRepo, logg),
		Metrics: metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}
	statusService, err := payments.NewStatusService(payments.StatusServiceParams{
		Orders:     orderRepo,
		Processor:  processor,
		Reconciler: reconciler,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:         logg,
		Orders:         orderRepo,
		Status:         statusService,
		ReconcileAfter: cfg.Settlement.ReconcileAfter,
		BatchSize:      cfg.Settlement.ReconcileBatch,
	})
	if err != nil {
		return nil, err
	}
	expiryJob, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:      logg,
		Orders:      orderRepo,
		Processor:   processor,
		Reconciler:  reconciler,
		ExpireAfter: cfg.Settlement.ExpireAfter,
		BatchSize:   cfg.Settlement.ReconcileBatch,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}

	registry, err := cron.NewRegistry(reconcileJob, expiryJob, retentionJob)
	if err != nil {
		return nil, err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("settlement-sweep:"+envOrLocal(cfg.App.Env)), 0)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Settlement.SweepInterval,
	})
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
