package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tradepost-backend/internal/reconciliation"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

const (
	outboxRetentionDays       = 30
	notificationRetentionDays = 90
)

type reconciler interface {
	Sync(ctx context.Context) (reconciliation.Result, error)
}

// NewReconcileJob runs the reconciliation sync on every cycle.
func NewReconcileJob(logg *logger.Logger, svc reconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if svc == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	return &reconcileJob{logg: logg, svc: svc}, nil
}

type reconcileJob struct {
	logg *logger.Logger
	svc  reconciler
}

func (j *reconcileJob) Name() string { return "fulfillment-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	res, err := j.svc.Sync(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"created": res.Created,
		"skipped": res.Skipped,
	})
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	j.logg.Info(logCtx, "reconcile cycle complete")
	return nil
}

type purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeFunc adapts a repository delete method to a retention job.
type PurgeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f PurgeFunc) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

// RetentionJobParams configure a job that deletes rows older than a cutoff.
type RetentionJobParams struct {
	Name          string
	Logger        *logger.Logger
	Purge         PurgeFunc
	RetentionDays int
}

func newRetentionJob(params RetentionJobParams, defaultDays int) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purge == nil {
		return nil, fmt.Errorf("purge function required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultDays
	}
	return &retentionJob{
		name:      params.Name,
		logg:      params.Logger,
		purge:     params.Purge,
		retention: days,
		now:       time.Now,
	}, nil
}

// NewOutboxRetentionJob deletes outbox rows published more than 30 days ago
// unless RetentionDays overrides it.
func NewOutboxRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Name == "" {
		params.Name = "outbox-retention"
	}
	return newRetentionJob(params, outboxRetentionDays)
}

// NewNotificationCleanupJob deletes read notifications older than 90 days
// unless RetentionDays overrides it.
func NewNotificationCleanupJob(params RetentionJobParams) (Job, error) {
	if params.Name == "" {
		params.Name = "notification-cleanup"
	}
	return newRetentionJob(params, notificationRetentionDays)
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	purge     purger
	retention int
	now       func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.purge.Purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "retention cleanup complete")
	return nil
}
