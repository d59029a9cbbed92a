package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	values  map[string]time.Duration
	failSet error
}

func newMapStore() *mapStore { return &mapStore{values: map[string]time.Duration{}} }

func (m *mapStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.failSet != nil {
		return false, m.failSet
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = ttl
	return true, nil
}

func (m *mapStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *mapStore) IdempotencyKey(scope, id string) string {
	return "tp:idempotency:" + scope + ":" + id
}

func TestClaimIsFirstWriterWins(t *testing.T) {
	store := newMapStore()
	guard, err := NewGuard(store, 24*time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()
	ctx := context.Background()

	first, err := guard.Claim(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	require.True(t, first)

	again, err := guard.Claim(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	require.False(t, again)

	key := "tp:idempotency:evt:processed:notification-worker:" + eventID.String()
	require.Equal(t, 24*time.Hour, store.values[key])

	other, err := guard.Claim(ctx, "audit-worker", eventID)
	require.NoError(t, err)
	require.True(t, other, "claims are scoped per consumer")
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	guard, _ := NewGuard(newMapStore(), time.Hour)
	eventID := uuid.New()
	ctx := context.Background()

	_, _ = guard.Claim(ctx, "notification-worker", eventID)
	require.NoError(t, guard.Release(ctx, "notification-worker", eventID))

	first, err := guard.Claim(ctx, "notification-worker", eventID)
	require.NoError(t, err)
	require.True(t, first)
}

func TestClaimRejectsBadInputAndStoreErrors(t *testing.T) {
	store := newMapStore()
	guard, _ := NewGuard(store, time.Hour)
	ctx := context.Background()

	_, err := guard.Claim(ctx, "", uuid.New())
	require.Error(t, err)
	_, err = guard.Claim(ctx, "notification-worker", uuid.Nil)
	require.Error(t, err)

	store.failSet = errors.New("boom")
	_, err = guard.Claim(ctx, "notification-worker", uuid.New())
	require.Error(t, err)

	_, err = NewGuard(nil, time.Hour)
	require.Error(t, err)
}
