package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type recordingCreator struct {
	rows []models.Notification
	err  error
}

func (r *recordingCreator) Create(ctx context.Context, notification *models.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, *notification)
	return nil
}

func newTestConsumer(t *testing.T, repo creator) (*Consumer, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	guard, err := idempotency.NewGuard(store, time.Hour)
	require.NoError(t, err)
	return &Consumer{
		repo:        repo,
		idempotency: guard,
		decoders:    NewDecoderRegistry(),
		logg:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		now:         func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	}, store
}

func notificationMessage(t *testing.T, eventID uuid.UUID, data payloads.NotificationRequestedEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.CurrentVersion,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return envelope
}

var notificationAttrs = map[string]string{"event_type": string(enums.EventNotificationRequested)}

func TestConsumerStoresNotificationOnce(t *testing.T) {
	repo := &recordingCreator{}
	consumer, _ := newTestConsumer(t, repo)

	user := uuid.New()
	eventID := uuid.New()
	link := "/orders/abc"
	data := notificationMessage(t, eventID, payloads.NotificationRequestedEvent{
		UserID: user, Type: enums.NotificationTypePaymentVerified, Title: "Payment verified", Message: "ok", Link: &link,
	})

	ctx := context.Background()
	assert.False(t, consumer.handle(ctx, "m1", notificationAttrs, data))
	assert.False(t, consumer.handle(ctx, "m2", notificationAttrs, data), "redelivered duplicate is acked")

	require.Len(t, repo.rows, 1)
	row := repo.rows[0]
	assert.Equal(t, user, row.UserID)
	require.NotNil(t, row.EventID)
	assert.Equal(t, eventID, *row.EventID)
	assert.Equal(t, enums.NotificationTypePaymentVerified, row.Type)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), row.CreatedAt)
	require.NotNil(t, row.Link)
	assert.Equal(t, link, *row.Link)
}

func TestConsumerAcksWithoutStoring(t *testing.T) {
	valid := payloads.NotificationRequestedEvent{UserID: uuid.New(), Type: enums.NotificationTypeOrderUpdate, Title: "t", Message: "m"}
	noUser := valid
	noUser.UserID = uuid.Nil
	badType := valid
	badType.Type = enums.NotificationType("carrier_pigeon")

	badID, err := json.Marshal(outbox.PayloadEnvelope{Version: outbox.CurrentVersion, EventID: "nope", Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	futureVersion, err := json.Marshal(outbox.PayloadEnvelope{Version: 99, EventID: uuid.NewString(), Data: json.RawMessage(`{}`)})
	require.NoError(t, err)

	cases := []struct {
		name  string
		attrs map[string]string
		data  []byte
	}{
		{"other event type", map[string]string{"event_type": string(enums.EventPayoutRecorded)}, []byte(`{}`)},
		{"missing attributes", nil, notificationMessage(t, uuid.New(), valid)},
		{"not json", notificationAttrs, []byte("not json")},
		{"bad event id", notificationAttrs, badID},
		{"unknown version", notificationAttrs, futureVersion},
		{"missing user", notificationAttrs, notificationMessage(t, uuid.New(), noUser)},
		{"unknown type", notificationAttrs, notificationMessage(t, uuid.New(), badType)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &recordingCreator{}
			consumer, store := newTestConsumer(t, repo)

			assert.False(t, consumer.handle(context.Background(), "m1", tc.attrs, tc.data))
			assert.Empty(t, repo.rows)
			assert.Empty(t, store.keys)
		})
	}
}

func TestConsumerRedeliversAfterInsertFailure(t *testing.T) {
	repo := &recordingCreator{err: errors.New("db down")}
	consumer, store := newTestConsumer(t, repo)

	data := notificationMessage(t, uuid.New(), payloads.NotificationRequestedEvent{
		UserID: uuid.New(), Type: enums.NotificationTypeOrderFailed, Title: "Order failed", Message: "sorry",
	})
	assert.True(t, consumer.handle(context.Background(), "m1", notificationAttrs, data))
	assert.Empty(t, store.keys, "claim is released so the retry can run")

	repo.err = nil
	assert.False(t, consumer.handle(context.Background(), "m1", notificationAttrs, data))
	assert.Len(t, repo.rows, 1)
}

func TestConsumerDropsNotificationForMissingRecipient(t *testing.T) {
	repo := &recordingCreator{err: pkgerrors.Wrap(pkgerrors.CodeNotFound, errors.New("fk violation"), "notification recipient not found")}
	consumer, store := newTestConsumer(t, repo)

	data := notificationMessage(t, uuid.New(), payloads.NotificationRequestedEvent{
		UserID: uuid.New(), Type: enums.NotificationTypeOrderFailed, Title: "Order failed", Message: "sorry",
	})
	assert.False(t, consumer.handle(context.Background(), "m1", notificationAttrs, data))
	assert.Len(t, store.keys, 1, "claim is kept so redeliveries are skipped")
	assert.Empty(t, repo.rows)
}

func TestNewConsumerValidatesDependencies(t *testing.T) {
	_, err := NewConsumer(nil, nil, nil, nil)
	assert.ErrorContains(t, err, "repository")

	_, err = NewConsumer(&recordingCreator{}, nil, nil, nil)
	assert.ErrorContains(t, err, "subscription")
}
