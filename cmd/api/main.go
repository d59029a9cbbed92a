package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tradepost-backend/api/routes"
	"github.com/angelmondragon/tradepost-backend/internal/fulfillment"
	"github.com/angelmondragon/tradepost-backend/internal/listings"
	"github.com/angelmondragon/tradepost-backend/internal/notifications"
	"github.com/angelmondragon/tradepost-backend/internal/paymentproofs"
	"github.com/angelmondragon/tradepost-backend/internal/payout"
	"github.com/angelmondragon/tradepost-backend/internal/reconciliation"
	"github.com/angelmondragon/tradepost-backend/internal/users"
	"github.com/angelmondragon/tradepost-backend/pkg/auth/session"
	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/db"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/metrics"
	"github.com/angelmondragon/tradepost-backend/pkg/migrate"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.LogFormat == "console",
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(context.Background(), logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	err = migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient)
	requireResource(context.Background(), logg, "dev migrations", err)

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(context.Background(), logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(context.Background(), logg, "session manager", err)

	svc, err := buildServices(cfg, logg, dbClient, prometheus.DefaultRegisterer)
	requireResource(context.Background(), logg, "domain services", err)

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Store:         redisClient,
			Sessions:      sessionManager,
			Fulfillment:   svc.fulfillment,
			Reconciler:    svc.reconciler,
			PaymentProofs: svc.paymentProofs,
			Notifications: svc.notifications,
			Gatherer:      prometheus.DefaultGatherer,
			HTTPMetrics:   metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

type services struct {
	fulfillment   fulfillment.Service
	reconciler    *reconciliation.Service
	paymentProofs paymentproofs.Service
	notifications notifications.Service
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*services, error) {
	gdb := dbClient.DB()

	percent, err := cfg.Marketplace.DefaultCommission()
	if err != nil {
		return nil, err
	}
	calculator, err := payout.NewCalculator(percent)
	if err != nil {
		return nil, fmt.Errorf("payout calculator: %w", err)
	}
	payouts, err := payout.NewService(payout.NewRepository(gdb))
	if err != nil {
		return nil, err
	}
	listingService, err := listings.NewService(listings.NewRepository(gdb))
	if err != nil {
		return nil, err
	}

	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)
	notifier, err := notifications.NewNotifier(emitter, logg)
	if err != nil {
		return nil, err
	}

	fulfillmentService, err := fulfillment.NewService(fulfillment.ServiceParams{
		Repo:       fulfillment.NewRepository(gdb),
		Tx:         dbClient,
		Listings:   listingService,
		Payouts:    payouts,
		Calculator: calculator,
		Outbox:     emitter,
		Notifier:   notifier,
		Metrics:    metrics.NewFulfillmentMetrics(reg),
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("fulfillment service: %w", err)
	}

	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		Repo:       reconciliation.NewRepository(gdb),
		Records:    fulfillment.NewRepository(gdb),
		Tx:         dbClient,
		Users:      users.NewRepository(gdb),
		Listings:   listingService,
		Calculator: calculator,
		Outbox:     emitter,
		Notifier:   notifier,
		Metrics:    metrics.NewReconciliationMetrics(reg),
		Logger:     logg,
		BatchSize:  cfg.Reconciliation.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("reconciliation service: %w", err)
	}

	proofs, err := paymentproofs.NewService(paymentproofs.NewRepository(gdb), dbClient, listingService, emitter, notifier, logg)
	if err != nil {
		return nil, fmt.Errorf("payment proof service: %w", err)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(gdb))
	if err != nil {
		return nil, err
	}

	return &services{
		fulfillment:   fulfillmentService,
		reconciler:    reconciler,
		paymentProofs: proofs,
		notifications: notificationService,
	}, nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
