package controllers

import (
	"math"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradepost-backend/api/middleware"
	"github.com/angelmondragon/tradepost-backend/api/responses"
	"github.com/angelmondragon/tradepost-backend/api/validators"
	"github.com/angelmondragon/tradepost-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
)

var errNotificationsDown = pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable")

// ListNotifications serves GET /notifications. Oversized limits are clamped
// by the service; non-positive ones are rejected here.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, errNotificationsDown)
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, math.MaxInt32)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		page, err := svc.List(ctx, notifications.ListParams{
			UserID:     userID,
			Limit:      limit,
			Cursor:     r.URL.Query().Get("cursor"),
			UnreadOnly: unreadOnly,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// MarkNotificationRead serves POST /notifications/{notificationId}/read.
func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, errNotificationsDown)
			return
		}
		userID, err := callerID(r)
		if err == nil {
			var id uuid.UUID
			if id, err = validators.ParseURLUUID(r, "notificationId"); err == nil {
				err = svc.MarkRead(ctx, userID, id)
			}
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

// MarkAllNotificationsRead serves POST /notifications/read-all.
func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, errNotificationsDown)
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		n, err := svc.MarkAllRead(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": n})
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	actor := middleware.ActorFromContext(r.Context())
	if err := actor.Validate(); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "authenticated user required")
	}
	return actor.ID, nil
}
