package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/r2blaze/r2blaze-backend/api/routes"
	"github.com/r2blaze/r2blaze-backend/internal/orders"
	"github.com/r2blaze/r2blaze-backend/internal/payments"
	"github.com/r2blaze/r2blaze-backend/pkg/config"
	"github.com/r2blaze/r2blaze-backend/pkg/db"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/metrics"
	"github.com/r2blaze/r2blaze-backend/pkg/migrate"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox"
	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
	"github.com/r2blaze/r2blaze-backend/pkg/redis"
)

const (
	serviceName     = "api"
	shutdownTimeout = 20 * time.Second
)

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

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Env:         cfg.App.Env,
	})

	if err := run(bootCtx, cfg, logg); err != nil {
		logg.Error(bootCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(bootCtx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	params, err := buildRouterParams(cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(bootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": server.Addr,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(gctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(context.WithoutCancel(gctx), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildRouterParams(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.RouterParams, error) {
	processor, err := paystack.NewClient(cfg.Paystack)
	if err != nil {
		return routes.RouterParams{}, fmt.Errorf("paystack client: %w", err)
	}
	currency, err := enums.ParseCurrency(cfg.Paystack.Currency)
	if err != nil {
		return routes.RouterParams{}, fmt.Errorf("paystack currency: %w", err)
	}

	orderRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		DB:      dbClient,
		Orders:  orderRepo,
		Outbox:  outboxService,
		Metrics: settlementMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	initiator, err := payments.NewInitiator(payments.InitiatorParams{
		Processor:      processor,
		Ledger:         payments.NewReferenceLedger(cfg.Settlement.ExpireAfter),
		Logger:         logg,
		AppBaseURL:     cfg.App.BaseURL,
		CallbackPath:   cfg.Paystack.CallbackPath,
		Currency:       currency,
		MinAmountMinor: cfg.Checkout.MinAmountMinor,
		Timeout:        cfg.Paystack.Timeout,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}
	checkout, err := payments.NewCheckoutService(payments.CheckoutServiceParams{
		DB:              dbClient,
		Orders:          orderRepo,
		Initiator:       initiator,
		Outbox:          outboxService,
		Logger:          logg,
		ReferencePrefix: cfg.Checkout.ReferencePrefix,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	status, err := payments.NewStatusService(payments.StatusServiceParams{
		Orders:     orderRepo,
		Processor:  processor,
		Reconciler: reconciler,
		Logger:     logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	guard, err := payments.NewNotificationGuard(redisClient, cfg.Settlement.NotifyDedupTTL)
	if err != nil {
		return routes.RouterParams{}, err
	}
	notifications, err := payments.NewNotificationService(payments.NotificationServiceParams{
		Reconciler: reconciler,
		Guard:      guard,
		Metrics:    settlementMetrics,
		Logger:     logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	conflicts, err := payments.NewConflictService(dbClient, orderRepo, reconciler, outboxService)
	if err != nil {
		return routes.RouterParams{}, err
	}

	return routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Gatherer:      prometheus.DefaultGatherer,
		Checkout:      checkout,
		Status:        status,
		Notifications: notifications,
		Conflicts:     conflicts,
	}, nil
}
