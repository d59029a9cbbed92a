package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/tradepost-backend/api/responses"
	pkgAuth "github.com/angelmondragon/tradepost-backend/pkg/auth"
	"github.com/angelmondragon/tradepost-backend/pkg/auth/session"
	"github.com/angelmondragon/tradepost-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

// Auth validates a bearer token, checks its session and seeds the request
// context with the resolved actor.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r.Context(), cfg, verifier, bearerToken(r))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			actor := claims.Actor()
			ctx := WithAccessID(WithActor(r.Context(), actor), claims.ID)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithUserID(ctx, actor.ID.String()), string(actor.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, verifier session.AccessSessionChecker, token string) (*pkgAuth.AccessTokenClaims, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if err := claims.Actor().Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token subject")
	}
	if verifier == nil {
		return claims, nil
	}

	live, err := verifier.HasSession(ctx, claims.ID)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case !live:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

// bearerToken accepts "Bearer <token>" in any case, or a bare token.
func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return raw
}
