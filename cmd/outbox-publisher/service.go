package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/metrics"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publishMetrics interface {
	IncPublished(eventType string)
	IncFailed(eventType string)
	IncDeadLettered(eventType, reason string)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	DLQRepository    dlqRepository
	Metrics          publishMetrics
	PublisherFactory publisherFactory
}

func (p ServiceParams) validate() error {
	missing := ""
	switch {
	case p.Config == nil:
		missing = "config"
	case p.Logger == nil:
		missing = "logger"
	case p.DB == nil:
		missing = "database client"
	case p.PubSub == nil:
		missing = "pubsub client"
	case p.Repository == nil:
		missing = "outbox repository"
	case p.Registry == nil:
		missing = "event registry"
	case p.DLQRepository == nil:
		missing = "dlq repository"
	}
	if missing != "" {
		return fmt.Errorf("outbox publisher: %s is required", missing)
	}
	return nil
}

// Service drains outbox_events to Pub/Sub in FIFO batches. One batch runs in
// one transaction so the row locks taken by the fetch hold until every
// outcome is written.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	metrics          publishMetrics
	publisherFactory publisherFactory
	publishers       map[string]publisher
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	s := &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		metrics:          params.Metrics,
		publisherFactory: params.PublisherFactory,
		publishers:       map[string]publisher{},
		batchSize:        defaultBatchSize,
		maxAttempts:      defaultMaxAttempts,
		pollInterval:     defaultPollInterval,
	}
	if s.metrics == nil {
		s.metrics = metrics.NewOutboxMetrics(nil)
	}
	if s.publisherFactory == nil {
		s.publisherFactory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}

	cfg := params.Config.Outbox
	if cfg.BatchSize > 0 {
		s.batchSize = cfg.BatchSize
	}
	if cfg.MaxAttempts > 0 {
		s.maxAttempts = cfg.MaxAttempts
	}
	if cfg.PollIntervalMS > 0 {
		s.pollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	return s, nil
}

// Run polls until ctx is canceled. Failed batches back off exponentially up
// to maxBackoff; a full batch polls again immediately.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	defer s.stopPublishers()

	pace := pacer{base: s.pollInterval, max: maxBackoff}
	for {
		processed, err := s.processBatch(ctx)
		if ctx.Err() != nil {
			s.logg.Info(ctx, "outbox.publisher_stopping")
			return ctx.Err()
		}

		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = pace.fail()
		case processed:
			pace.reset()
			continue
		default:
			wait = pace.reset()
		}
		if err := sleep(ctx, wait+jitter()); err != nil {
			return err
		}
	}
}

// publisherFor caches one publisher per topic. Nil results are not cached so
// a misconfigured topic keeps dead-lettering instead of panicking.
func (s *Service) publisherFor(topic string) publisher {
	if p, ok := s.publishers[topic]; ok {
		return p
	}
	p := s.publisherFactory(topic)
	if p != nil {
		s.publishers[topic] = p
	}
	return p
}

func (s *Service) stopPublishers() {
	for topic, p := range s.publishers {
		if st, ok := p.(interface{ Stop() }); ok {
			st.Stop()
		}
		delete(s.publishers, topic)
	}
}

// pacer tracks the delay between polls.
type pacer struct {
	base, max, current time.Duration
}

func (p *pacer) fail() time.Duration {
	if p.current <= 0 {
		p.current = p.base
	}
	p.current = min(p.current*2, p.max)
	return p.current
}

func (p *pacer) reset() time.Duration {
	p.current = 0
	return p.base
}

func jitter() time.Duration {
	return rand.N(jitterWindow)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

var errNoPublisher = errors.New("publisher not configured")
