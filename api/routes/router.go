package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradepost-backend/api/controllers"
	"github.com/angelmondragon/tradepost-backend/api/middleware"
	"github.com/angelmondragon/tradepost-backend/internal/fulfillment"
	"github.com/angelmondragon/tradepost-backend/internal/notifications"
	"github.com/angelmondragon/tradepost-backend/internal/paymentproofs"
	"github.com/angelmondragon/tradepost-backend/internal/reconciliation"
	"github.com/angelmondragon/tradepost-backend/pkg/auth/session"
	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/tradepost-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Revoke(context.Context, string) error
}

// Store is the Redis surface the HTTP layer needs.
type Store interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type reconciler interface {
	Sync(ctx context.Context) (reconciliation.Result, error)
}

// Params carries everything the router wires into handlers.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Store         Store
	Sessions      sessionManager
	Fulfillment   fulfillment.Service
	Reconciler    reconciler
	PaymentProofs paymentproofs.Service
	Notifications notifications.Service
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *metrics.HTTPMetrics
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	store := p.Store
	var idempotencyStore pkgredis.IdempotencyStore
	var limiterStore interface {
		FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	}
	if store != nil {
		idempotencyStore = store
		limiterStore = store
	}

	ipPolicy := middleware.NewRateLimitPolicy("api", middleware.RateLimitByIP, cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitPerIP)
	userPolicy := middleware.NewRateLimitPolicy("api", middleware.RateLimitByUser, cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitPerUser)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
	)
	if len(cfg.HTTP.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))
	}

	readiness := map[string]controllers.Pinger{}
	if p.DB != nil {
		readiness["database"] = p.DB
	}
	if store != nil {
		readiness["redis"] = store
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(p.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(ipPolicy, limiterStore, logg))
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.RateLimit(userPolicy, limiterStore, logg))

		r.Post("/auth/logout", controllers.AuthLogout(p.Sessions, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(ipPolicy, limiterStore, logg))
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Use(middleware.RateLimit(userPolicy, limiterStore, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/order-status", func(r chi.Router) {
			r.Post("/sync", controllers.SyncOrderStatus(p.Reconciler, logg))
			r.Get("/", controllers.ListOrderStatus(p.Fulfillment, logg))
			r.Get("/{id}", controllers.GetOrderStatus(p.Fulfillment, logg))
			r.Put("/{id}", controllers.AdvanceOrderStatus(p.Fulfillment, logg))
			r.Get("/{id}/payout", controllers.GetOrderPayout(p.Fulfillment, logg))
		})

		r.Route("/payment-proofs", func(r chi.Router) {
			r.Get("/", controllers.ListPaymentProofs(p.PaymentProofs, logg))
			r.Get("/{id}", controllers.GetPaymentProof(p.PaymentProofs, logg))
			r.Post("/{id}/decision", controllers.DecidePaymentProof(p.PaymentProofs, logg))
		})
	})

	return r
}
