package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tradepost-backend/pkg/config"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return fmt.Sprintf("sess:%s", accessID)
}

func TestManagerOpenCheckRevoke(t *testing.T) {
	store := newMockStore()
	manager := &Manager{store: store, ttl: time.Hour}
	ctx := context.Background()
	accessID := NewAccessID()

	ok, err := manager.HasSession(ctx, accessID)
	if err != nil || ok {
		t.Fatalf("expected no session before open, ok=%v err=%v", ok, err)
	}

	if err := manager.Open(ctx, accessID, uuid.New()); err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := store.ttls["sess:"+accessID]; got != time.Hour {
		t.Fatalf("expected ttl of one hour, got %v", got)
	}

	ok, err = manager.HasSession(ctx, accessID)
	if err != nil || !ok {
		t.Fatalf("expected live session, ok=%v err=%v", ok, err)
	}

	if err := manager.Revoke(ctx, accessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = manager.HasSession(ctx, accessID)
	if err != nil || ok {
		t.Fatalf("expected revoked session, ok=%v err=%v", ok, err)
	}
}

func TestManagerHasSessionPropagatesStoreErrors(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("redis down")
	manager := &Manager{store: store, ttl: time.Hour}

	if _, err := manager.HasSession(context.Background(), "abc"); err == nil {
		t.Fatal("expected store error to propagate")
	}
	if _, err := manager.HasSession(context.Background(), " "); err == nil {
		t.Fatal("expected blank access id to be rejected")
	}
}

func TestNewManagerRequiresPositiveTTL(t *testing.T) {
	if _, err := NewManager(newMockStore(), config.JWTConfig{ExpirationMinutes: 0}); err == nil {
		t.Fatal("expected ttl error")
	}
	m, err := NewManager(newMockStore(), config.JWTConfig{ExpirationMinutes: 15})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.ttl != 15*time.Minute {
		t.Fatalf("unexpected ttl %v", m.ttl)
	}
}
