package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds each job run. Zero leaves jobs bounded only by the
	// service context.
	JobTimeout time.Duration
}

// Service runs every registered job once per interval. A cycle only runs on
// the instance that wins the lock, and jobs within a cycle run in
// registration order.
type Service struct {
	logg       *logger.Logger
	jobs       *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("cron: logger required")
	case p.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	s := &Service{
		logg:       p.Logger,
		jobs:       p.Registry,
		lock:       p.Lock,
		metrics:    p.Metrics,
		interval:   p.Interval,
		jobTimeout: p.JobTimeout,
	}
	if s.jobs == nil {
		s.jobs = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run starts with an immediate cycle and blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	next := time.NewTimer(0)
	defer next.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopping")
			return ctx.Err()
		case <-next.C:
		}
		if err := s.runCycle(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		next.Reset(s.interval)
	}
}

// runCycle returns an error only when the lock could not be consulted or ctx
// ended mid-cycle. Failing jobs are logged and counted.
func (s *Service) runCycle(ctx context.Context) error {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.logg.Debug(ctx, "cron.lock_busy")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	failed := 0
	for _, job := range s.jobs.Jobs() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.runJob(ctx, job); err != nil {
			failed++
		}
	}
	if failed > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "failed_jobs", failed), "cron.cycle_degraded")
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		took := time.Since(start)
		s.metrics.ObserveRun(name, took, err)
		logCtx := s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
		if err != nil {
			s.logg.Error(logCtx, "cron.job_failed", err)
			return
		}
		s.logg.Info(logCtx, "cron.job_done")
	}()
	return job.Run(ctx)
}
