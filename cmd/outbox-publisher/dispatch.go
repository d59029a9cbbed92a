package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/registry"
)

// inflight is one row of a batch between Publish and Get.
type inflight struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
}

// processBatch reports whether any rows were claimed. Every message of the
// batch is handed to Pub/Sub before any result is awaited so the client can
// bundle them.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var claimed int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch batch: %w", err)
		}
		claimed = len(events)
		if claimed == 0 {
			return nil
		}

		pubCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()

		batch := make([]*inflight, 0, claimed)
		for _, event := range events {
			batch = append(batch, s.send(pubCtx, event))
		}
		for _, item := range batch {
			if item.result != nil {
				_, item.err = item.result.Get(pubCtx)
			}
			if err := s.settle(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed > 0, err
}

func (s *Service) send(ctx context.Context, event models.OutboxEvent) *inflight {
	item := &inflight{event: event}
	item.resolved, item.err = s.registry.Resolve(event)
	if item.resolved == nil {
		if item.err == nil {
			item.err = fmt.Errorf("no descriptor for %s", event.EventType)
		}
		return item
	}

	topic := item.resolved.Descriptor.Topic
	pub := s.publisherFor(topic)
	if pub == nil {
		item.err = registry.NewNonRetryableError(fmt.Errorf("%w for topic %s", errNoPublisher, topic))
		return item
	}
	item.result = pub.Publish(ctx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: s.attributes(item),
	})
	if item.result == nil {
		item.err = registry.NewNonRetryableError(fmt.Errorf("publisher for %s returned no result", topic))
	}
	return item
}

// settle writes the outcome of one row. Only storage errors are returned;
// they abort the batch and roll back every outcome written so far.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, item *inflight) error {
	event := item.event
	eventType := string(event.EventType)
	logCtx := s.logg.WithFields(ctx, s.fields(item))

	if item.resolved == nil {
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonDecodeFailed, item.err)
	}
	if item.err == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Debug(logCtx, "outbox.published")
		return nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(item.err, &nonRetryable) {
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, item.err)
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", item.err))
	}

	s.logg.Warn(s.logg.WithField(logCtx, "error", item.err.Error()), "outbox.publish_failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, item.err); err != nil {
		return fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	s.metrics.IncFailed(eventType)
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"error_reason": reason, "error": msg}), "outbox.dead_lettered")

	err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

// attributes let subscribers filter and dedupe without decoding the body.
func (s *Service) attributes(item *inflight) map[string]string {
	event, env := item.event, item.resolved.Envelope
	return map[string]string{
		"event_id":       env.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"version":        strconv.Itoa(env.Version),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (s *Service) fields(item *inflight) map[string]any {
	event := item.event
	f := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if item.resolved != nil {
		f["event_id"] = item.resolved.Envelope.EventID
		f["topic"] = item.resolved.Descriptor.Topic
	}
	return f
}
