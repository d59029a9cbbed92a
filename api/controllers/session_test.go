package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/tradepost-backend/api/middleware"
)

type stubRevoker struct {
	revoked string
	err     error
}

func (s *stubRevoker) Revoke(ctx context.Context, accessID string) error {
	s.revoked = accessID
	return s.err
}

func TestAuthLogoutRevokesAccessID(t *testing.T) {
	revoker := &stubRevoker{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(middleware.WithAccessID(req.Context(), "jti-123"))
	resp := httptest.NewRecorder()

	AuthLogout(revoker, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if revoker.revoked != "jti-123" {
		t.Fatalf("expected jti-123 revoked, got %q", revoker.revoked)
	}
}

func TestAuthLogoutWithoutSession(t *testing.T) {
	resp := httptest.NewRecorder()
	AuthLogout(&stubRevoker{}, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthLogoutStoreFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(middleware.WithAccessID(req.Context(), "jti-123"))
	resp := httptest.NewRecorder()

	AuthLogout(&stubRevoker{err: errors.New("redis down")}, testLogger())(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
