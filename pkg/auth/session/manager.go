// Package session tracks which access tokens are still live. A token whose
// jti has no session key is treated as logged out even before it expires.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tradepost-backend/pkg/config"
)

var errBlankAccessID = errors.New("access id is required")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is the read side used by the auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	store sessionStore
	ttl   time.Duration
}

// NewManager keeps sessions for as long as an access token lives.
func NewManager(s sessionStore, cfg config.JWTConfig) (*Manager, error) {
	if s == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	return &Manager{store: s, ttl: ttl}, nil
}

func NewAccessID() string { return uuid.NewString() }

func (m *Manager) key(accessID string) (string, error) {
	accessID = strings.TrimSpace(accessID)
	if accessID == "" {
		return "", errBlankAccessID
	}
	return m.store.AccessSessionKey(accessID), nil
}

func (m *Manager) Open(ctx context.Context, accessID string, userID uuid.UUID) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, userID.String(), m.ttl)
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	key, err := m.key(accessID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	key, err := m.key(accessID)
	if err != nil {
		return false, err
	}
	switch _, err := m.store.Get(ctx, key); {
	case errors.Is(err, goredis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}
