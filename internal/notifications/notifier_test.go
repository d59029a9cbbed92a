package notifications

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
)

func TestNotifierEnqueuesOutboxEvents(t *testing.T) {
	conn := sqlitetest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	notifier, err := NewNotifier(outbox.NewService(outbox.NewRepository(conn), logg), logg)
	require.NoError(t, err)

	buyer, seller := uuid.New(), uuid.New()
	err = conn.Transaction(func(tx *gorm.DB) error {
		notifier.Notify(context.Background(), tx,
			Request{UserID: buyer, Type: enums.NotificationTypePaymentVerified, Title: "Payment verified", Message: "thanks", Link: "/orders/1"},
			Request{UserID: seller, Type: enums.NotificationTypeOrderUpdate, Title: "Item sold", Message: "prepare item"},
		)
		return nil
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, enums.EventNotificationRequested, row.EventType)
		assert.Equal(t, enums.AggregateNotification, row.AggregateType)
	}

	envelope, err := outbox.DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	decoded, err := NewDecoderRegistry().Decode(enums.EventNotificationRequested, envelope.Version, envelope.Data)
	require.NoError(t, err)
	payload := decoded.(*payloads.NotificationRequestedEvent)
	assert.Contains(t, []uuid.UUID{buyer, seller}, payload.UserID)
}

func TestNotifierSwallowsInvalidRequests(t *testing.T) {
	conn := sqlitetest.Open(t)
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	notifier, err := NewNotifier(outbox.NewService(outbox.NewRepository(conn), logg), logg)
	require.NoError(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		notifier.Notify(context.Background(), tx,
			Request{UserID: uuid.Nil, Type: enums.NotificationTypeOrderUpdate, Title: "t", Message: "m"},
			Request{UserID: uuid.New(), Type: enums.NotificationType("bogus"), Title: "t", Message: "m"},
		)
		return tx.Exec("SELECT 1").Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Contains(t, buf.String(), "notification enqueue failed")
}

func TestNewNotifierRequiresDependencies(t *testing.T) {
	_, err := NewNotifier(nil, nil)
	require.Error(t, err)
}
