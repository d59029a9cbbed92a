// Package idempotency stops a consumer from applying the same outbox event
// twice when Pub/Sub redelivers it.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const processedScope = "evt:processed"

// Store is the slice of the Redis client a Guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard records event IDs per consumer under
// tp:idempotency:evt:processed:<consumer>:<event_id> for ttl.
type Guard struct {
	store Store
	ttl   time.Duration
}

func NewGuard(store Store, ttl time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Claim marks eventID as handled by consumer. It returns false when an
// earlier delivery already claimed it.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
}

// Release drops a claim so the next delivery is processed again. Call it
// when handling failed after Claim succeeded.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(processedScope+":"+consumer, eventID.String()), nil
}
