package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
)

func TestServiceEmitPersistsEnvelope(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	recordID := uuid.New()
	actor := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventFulfillmentCompleted,
			AggregateType: enums.AggregateFulfillmentRecord,
			AggregateID:   recordID,
			Actor:         &ActorRef{UserID: actor, Role: string(enums.UserRoleAdmin)},
			Data:          payloads.FulfillmentCompletedEvent{FulfillmentRecordID: recordID},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventFulfillmentCompleted, rows[0].EventType)
	assert.Equal(t, recordID, rows[0].AggregateID)

	envelope, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, envelope.Version)
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor, envelope.Actor.UserID)
}

func TestServiceEmitRejectsInvalidInput(t *testing.T) {
	svc := NewService(nil, nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)

	conn := sqlitetest.Open(t)
	svc = NewService(NewRepository(conn), nil)
	err = svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.OutboxEventType("bogus"),
		AggregateType: enums.AggregateFulfillmentRecord,
	})
	require.Error(t, err)
}

func TestServiceEmitRollsBackWithCallerTx(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPayoutRecorded,
			AggregateType: enums.AggregatePayoutLedgerEntry,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"k": "v"},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := sqlitetest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	now := time.Now().UTC()
	old := models.OutboxEvent{
		ID: uuid.New(), EventType: enums.EventFulfillmentFailed, AggregateType: enums.AggregateFulfillmentRecord,
		AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: now.Add(-time.Minute),
	}
	exhausted := models.OutboxEvent{
		ID: uuid.New(), EventType: enums.EventFulfillmentFailed, AggregateType: enums.AggregateFulfillmentRecord,
		AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: now.Add(-2 * time.Minute), AttemptCount: 3,
	}
	require.NoError(t, repo.Insert(conn, old))
	require.NoError(t, repo.Insert(conn, exhausted))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].ID)

	require.NoError(t, repo.MarkFailedTx(conn, old.ID, errors.New("publish timeout")))
	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", old.ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "publish timeout", *reloaded.LastError)

	require.NoError(t, repo.MarkPublishedTx(conn, old.ID))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRepositoryMarkTerminalStopsRetries(t *testing.T) {
	conn := sqlitetest.Open(t)
	repo := NewRepository(conn)

	row := models.OutboxEvent{
		ID: uuid.New(), EventType: enums.EventNotificationRequested, AggregateType: enums.AggregateNotification,
		AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(conn, row))
	require.NoError(t, repo.MarkTerminalTx(conn, row.ID, errors.New("bad payload"), 5))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)

	dlq := NewDLQRepository(conn)
	msg := strings.Repeat("x", 2048)
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID: row.ID, EventType: row.EventType, AggregateType: row.AggregateType, AggregateID: row.AggregateID,
		Payload: row.Payload, ErrorReason: enums.OutboxDLQReasonNonRetryable, ErrorMessage: &msg, AttemptCount: 5,
		FailedAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
	}))
	var stored models.OutboxDLQ
	require.NoError(t, conn.First(&stored).Error)
	require.NotNil(t, stored.ErrorMessage)
	assert.Len(t, *stored.ErrorMessage, maxDLQErrorLen)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abé", 3))
	assert.Equal(t, "abé", truncate("abéd", 4))
}
