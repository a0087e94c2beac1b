package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r2blaze/r2blaze-backend/api/controllers"
	paymentcontrollers "github.com/r2blaze/r2blaze-backend/api/controllers/payments"
	"github.com/r2blaze/r2blaze-backend/api/middleware"
	"github.com/r2blaze/r2blaze-backend/pkg/config"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	pkgredis "github.com/r2blaze/r2blaze-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP layer uses for rate
// limits, idempotency replay and readiness.
type RedisStore interface {
	pkgredis.IdempotencyStore
	Ping(context.Context) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         RedisStore
	Gatherer      prometheus.Gatherer
	Checkout      paymentcontrollers.CheckoutService
	Status        paymentcontrollers.StatusService
	Notifications paymentcontrollers.NotificationService
	Conflicts     paymentcontrollers.ConflictService
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	deps := map[string]controllers.Pinger{}
	if params.DB != nil {
		deps["database"] = params.DB
	}
	if params.Redis != nil {
		deps["redis"] = params.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	var (
		limiter     RedisStore
		idempotency pkgredis.IdempotencyStore
	)
	if params.Redis != nil {
		limiter = params.Redis
		idempotency = params.Redis
	}
	initiatePolicy := middleware.NewRateLimitPolicy("initiate", cfg.RateLimit.Window, cfg.RateLimit.InitiateIPLimit, cfg.RateLimit.InitiateEmailLimit).
		WithTrustedProxyHops(cfg.RateLimit.TrustedProxyHops)
	verifyPolicy := middleware.NewRateLimitPolicy("verify", cfg.RateLimit.Window, cfg.RateLimit.VerifyIPLimit, 0).
		WithTrustedProxyHops(cfg.RateLimit.TrustedProxyHops)

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.With(
			middleware.RateLimit(initiatePolicy, limiter, logg),
			middleware.Idempotency(idempotency, 0, logg),
		).Post("/initiate", paymentcontrollers.Initiate(params.Checkout, logg))
		r.With(middleware.RateLimit(verifyPolicy, limiter, logg)).Get("/verify", paymentcontrollers.Verify(params.Status, logg))
		r.Post("/notify", paymentcontrollers.Notify(
			params.Notifications,
			[]byte(cfg.Paystack.SecretKey),
			cfg.Settlement.NotifyReadTimeout,
			logg,
		))
	})

	r.Route("/api/admin/v1/payments", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.Supabase, logg))
		r.Get("/conflicts", paymentcontrollers.ListConflicts(params.Conflicts, logg))
		r.Post("/conflicts/{conflictId}/resolve", paymentcontrollers.ResolveConflict(params.Conflicts, logg))
	})

	return r
}
