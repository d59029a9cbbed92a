package middleware

import (
	"context"

	"github.com/angelmondragon/tradepost-backend/pkg/auth"
)

type contextKey string

const (
	ctxActor    contextKey = "actor"
	ctxAccessID contextKey = "access_id"
)

// ActorFromContext returns the authenticated caller, or the zero Actor when
// the request never passed through Auth.
func ActorFromContext(ctx context.Context) auth.Actor {
	if ctx == nil {
		return auth.Actor{}
	}
	if v, ok := ctx.Value(ctxActor).(auth.Actor); ok {
		return v
	}
	return auth.Actor{}
}

func UserIDFromContext(ctx context.Context) string {
	actor := ActorFromContext(ctx)
	if actor.Validate() != nil {
		return ""
	}
	return actor.ID.String()
}

func RoleFromContext(ctx context.Context) string {
	return string(ActorFromContext(ctx).Role)
}

// AccessIDFromContext returns the jti of the bearer token.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the authenticated caller into the context.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccessID, accessID)
}
