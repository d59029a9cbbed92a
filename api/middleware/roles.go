package middleware

import (
	"net/http"

	"github.com/angelmondragon/tradepost-backend/api/responses"
	"github.com/angelmondragon/tradepost-backend/pkg/auth"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

// RequireAdmin rejects callers without the admin role. Missing identity is
// 401, any other role is 403.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.AuthorizeAdmin(ActorFromContext(r.Context())); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
