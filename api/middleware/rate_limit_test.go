package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradepost-backend/pkg/auth"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

type counterStore struct {
	counts map[string]int64
}

func (c *counterStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func TestRateLimitBlocksAfterLimitPerIP(t *testing.T) {
	store := &counterStore{}
	policy := NewRateLimitPolicy("api", RateLimitByIP, time.Minute, 2)
	handler := RateLimit(policy, store, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("expected first two requests allowed, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third request, got %d", codes[2])
	}
	if _, ok := store.counts["ip:api:10.0.0.1"]; !ok {
		t.Fatalf("expected ip counter key, got %v", store.counts)
	}
}

func TestRateLimitCountsUsersSeparately(t *testing.T) {
	store := &counterStore{}
	policy := NewRateLimitPolicy("admin", RateLimitByUser, time.Minute, 1)
	handler := RateLimit(policy, store, nil)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithActor(req.Context(), auth.Actor{ID: uuid.New(), Role: enums.UserRoleAdmin}))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, resp.Code)
		}
	}
}

func TestRateLimitPassesWithoutSubject(t *testing.T) {
	policy := NewRateLimitPolicy("admin", RateLimitByUser, time.Minute, 1)
	handler := RateLimit(policy, &counterStore{}, nil)(okHandler())

	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected anonymous request to pass, got %d", resp.Code)
		}
	}
}
