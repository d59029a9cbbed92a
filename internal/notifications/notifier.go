package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
)

// Request describes one in-app notification for one user.
type Request struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
	Link    string
	Actor   *outbox.ActorRef
}

// Sender is the fire-and-forget notification collaborator. Implementations
// never return errors; failures are logged.
type Sender interface {
	Notify(ctx context.Context, tx *gorm.DB, requests ...Request)
}

// Notifier enqueues notification_requested outbox rows on the caller's
// transaction. Each enqueue runs inside a savepoint so a failed insert leaves
// the surrounding transaction usable.
type Notifier struct {
	emitter outbox.Emitter
	logg    *logger.Logger
}

// NewNotifier builds the outbox-backed notification collaborator.
func NewNotifier(emitter outbox.Emitter, logg *logger.Logger) (*Notifier, error) {
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Notifier{emitter: emitter, logg: logg}, nil
}

func (n *Notifier) Notify(ctx context.Context, tx *gorm.DB, requests ...Request) {
	for _, req := range requests {
		if err := n.enqueue(ctx, tx, req); err != nil {
			logCtx := n.logg.WithFields(ctx, map[string]any{
				"notify_user_id":    req.UserID.String(),
				"notification_type": req.Type,
			})
			n.logg.Warn(logCtx, fmt.Sprintf("notification enqueue failed: %v", err))
		}
	}
}

func (n *Notifier) enqueue(ctx context.Context, tx *gorm.DB, req Request) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if req.UserID == uuid.Nil {
		return fmt.Errorf("user id required")
	}
	if !req.Type.IsValid() {
		return fmt.Errorf("invalid notification type %q", req.Type)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("title and message required")
	}

	data := payloads.NotificationRequestedEvent{
		UserID:  req.UserID,
		Type:    req.Type,
		Title:   strings.TrimSpace(req.Title),
		Message: strings.TrimSpace(req.Message),
	}
	if link := strings.TrimSpace(req.Link); link != "" {
		data.Link = &link
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   req.UserID,
		Actor:         req.Actor,
		Data:          data,
	}
	return tx.Transaction(func(sp *gorm.DB) error {
		return n.emitter.Emit(ctx, sp, event)
	})
}
