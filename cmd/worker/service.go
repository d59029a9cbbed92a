package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

type runner interface {
	Run(ctx context.Context) error
}

type pinger func(context.Context) error

type ServiceParams struct {
	Logger               *logger.Logger
	DBPing               pinger
	RedisPing            pinger
	PubSubPing           pinger
	NotificationConsumer runner
}

func (p ServiceParams) validate() error {
	switch {
	case p.Logger == nil:
		return errors.New("logger is required")
	case p.DBPing == nil:
		return errors.New("database client is required")
	case p.RedisPing == nil:
		return errors.New("redis client is required")
	case p.PubSubPing == nil:
		return errors.New("pubsub client is required")
	case p.NotificationConsumer == nil:
		return errors.New("notification consumer is required")
	}
	return nil
}

// Service runs the notification consumer once its dependencies answer.
type Service struct {
	logg     *logger.Logger
	probes   []probe
	consumer runner
}

type probe struct {
	name string
	ping pinger
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Service{
		logg: params.Logger,
		probes: []probe{
			{name: "database", ping: params.DBPing},
			{name: "redis", ping: params.RedisPing},
			{name: "pubsub", ping: params.PubSubPing},
		},
		consumer: params.NotificationConsumer,
	}, nil
}

// ready pings every dependency and reports all of the ones that failed.
func (s *Service) ready(ctx context.Context) error {
	var err error
	for _, p := range s.probes {
		if pingErr := p.ping(ctx); pingErr != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", p.name), "worker.dependency_down", pingErr)
			err = multierr.Append(err, fmt.Errorf("%s: %w", p.name, pingErr))
		}
	}
	return err
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return fmt.Errorf("worker not ready: %w", err)
	}
	s.logg.Info(ctx, "worker.ready")

	err := s.consumer.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		s.logg.Info(ctx, "worker.stopped")
		return nil
	}
	return fmt.Errorf("notification consumer: %w", err)
}
