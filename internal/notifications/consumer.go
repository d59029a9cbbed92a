package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

// ConsumerName scopes the processed-event keys of the notification worker.
const ConsumerName = "notification-worker"

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer turns notification_requested events into notification rows.
type Consumer struct {
	repo         creator
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Guard
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
	now          func() time.Time
}

// NewConsumer builds the notification consumer.
func NewConsumer(repo creator, subscription *pubsub.Subscriber, guard *idempotency.Guard, logg *logger.Logger) (*Consumer, error) {
	switch {
	case repo == nil:
		return nil, errors.New("notifications repository required")
	case subscription == nil:
		return nil, errors.New("notification subscription required")
	case guard == nil:
		return nil, errors.New("idempotency guard required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  guard,
		decoders:     NewDecoderRegistry(),
		logg:         logg,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// NewDecoderRegistry registers the payload versions this consumer understands.
func NewDecoderRegistry() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.RegisterJSON(enums.EventNotificationRequested, outbox.CurrentVersion, func() any {
		return new(payloads.NotificationRequestedEvent)
	})
	return decoders
}

// Run receives until ctx ends. Messages that can never succeed are acked
// and logged; only transient failures are nacked for redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// handle reports whether the message should be redelivered.
func (c *Consumer) handle(ctx context.Context, messageID string, attributes map[string]string, data []byte) (redeliver bool) {
	eventType := attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": eventType})
	if eventType != string(enums.EventNotificationRequested) {
		c.logg.Debug(logCtx, "notification.skip_event")
		return false
	}

	eventID, req, err := c.decode(data)
	if err != nil {
		c.logg.Error(logCtx, "notification.poison_message", err)
		return false
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	first, err := c.idempotency.Claim(ctx, ConsumerName, eventID)
	switch {
	case err != nil:
		c.logg.Error(logCtx, "notification.claim_failed", err)
		return true
	case !first:
		c.logg.Info(logCtx, "notification.duplicate_event")
		return false
	}

	row := &models.Notification{
		ID:        uuid.New(),
		UserID:    req.UserID,
		EventID:   &eventID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Link:      req.Link,
		CreatedAt: c.now(),
	}
	if err := c.repo.Create(ctx, row); err != nil {
		if !pkgerrors.Retryable(err) {
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "notification.dropped")
			return false
		}
		c.logg.Error(logCtx, "notification.insert_failed", err)
		if relErr := c.idempotency.Release(ctx, ConsumerName, eventID); relErr != nil {
			c.logg.Error(logCtx, "notification.release_failed", relErr)
		}
		return true
	}

	c.logg.Info(c.logg.WithUserID(logCtx, req.UserID.String()), "notification.stored")
	return false
}

// decode unpacks the envelope and validates the request it carries.
func (c *Consumer) decode(data []byte) (uuid.UUID, *payloads.NotificationRequestedEvent, error) {
	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("decode envelope: %w", err)
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("event id: %w", err)
	}
	decoded, err := c.decoders.Decode(enums.EventNotificationRequested, envelope.Version, envelope.Data)
	if err != nil {
		return uuid.Nil, nil, err
	}
	req, ok := decoded.(*payloads.NotificationRequestedEvent)
	switch {
	case !ok:
		return uuid.Nil, nil, fmt.Errorf("unexpected payload %T", decoded)
	case req.UserID == uuid.Nil:
		return uuid.Nil, nil, errors.New("notification request without user")
	case !req.Type.IsValid():
		return uuid.Nil, nil, fmt.Errorf("unknown notification type %q", req.Type)
	}
	return eventID, req, nil
}
