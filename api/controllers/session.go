package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/tradepost-backend/api/middleware"
	"github.com/angelmondragon/tradepost-backend/api/responses"
	"github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

type sessionRevoker interface {
	Revoke(ctx context.Context, accessID string) error
}

// AuthLogout revokes the session behind the presented access token.
func AuthLogout(manager sessionRevoker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeInternal, "session manager unavailable"))
			return
		}

		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			responses.WriteError(r.Context(), logg, w, errors.New(errors.CodeUnauthorized, "missing session id"))
			return
		}

		if err := manager.Revoke(r.Context(), accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, errors.Wrap(errors.CodeDependency, err, "revoke session"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}
