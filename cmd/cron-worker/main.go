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

	"github.com/angelmondragon/tradepost-backend/internal/cron"
	"github.com/angelmondragon/tradepost-backend/internal/fulfillment"
	"github.com/angelmondragon/tradepost-backend/internal/listings"
	"github.com/angelmondragon/tradepost-backend/internal/notifications"
	"github.com/angelmondragon/tradepost-backend/internal/payout"
	"github.com/angelmondragon/tradepost-backend/internal/reconciliation"
	"github.com/angelmondragon/tradepost-backend/internal/users"
	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/db"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/metrics"
	"github.com/angelmondragon/tradepost-backend/pkg/migrate"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	reconciler, err := buildReconciler(cfg, logg, dbClient)
	requireResource(context.Background(), logg, "reconciliation service", err)

	reconcileJob, err := cron.NewReconcileJob(logg, reconciler)
	requireResource(context.Background(), logg, "reconcile job", err)

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		Purge:         outbox.NewRepository(dbClient.DB()).DeletePublishedBefore,
		RetentionDays: cfg.Retention.OutboxDays,
	})
	requireResource(context.Background(), logg, "outbox retention job", err)

	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.RetentionJobParams{
		Logger:        logg,
		Purge:         notifications.NewRepository(dbClient.DB()).DeleteReadBefore,
		RetentionDays: cfg.Retention.NotificationDays,
	})
	requireResource(context.Background(), logg, "notification cleanup job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	requireResource(context.Background(), logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(reconcileJob, outboxRetention, notificationCleanup),
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	requireResource(context.Background(), logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	if addr := cfg.Service.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer); err != nil {
				logg.Error(ctx, "metrics listener stopped", err)
			}
		}()
	}
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildReconciler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*reconciliation.Service, error) {
	percent, err := cfg.Marketplace.DefaultCommission()
	if err != nil {
		return nil, err
	}
	calculator, err := payout.NewCalculator(percent)
	if err != nil {
		return nil, err
	}
	listingService, err := listings.NewService(listings.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	notifier, err := notifications.NewNotifier(emitter, logg)
	if err != nil {
		return nil, err
	}
	return reconciliation.NewService(reconciliation.ServiceParams{
		Repo:       reconciliation.NewRepository(dbClient.DB()),
		Records:    fulfillment.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Users:      users.NewRepository(dbClient.DB()),
		Listings:   listingService,
		Calculator: calculator,
		Outbox:     emitter,
		Notifier:   notifier,
		Metrics:    metrics.NewReconciliationMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
		BatchSize:  cfg.Reconciliation.BatchSize,
	})
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron-worker:%s", env)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
