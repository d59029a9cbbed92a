package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

var inboxEpoch = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func insertNotification(t *testing.T, repo Repository, userID uuid.UUID, at time.Time) models.Notification {
	t.Helper()
	n := models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      enums.NotificationTypeOrderUpdate,
		Title:     "Order update",
		Message:   "step completed",
		CreatedAt: at,
	}
	require.NoError(t, repo.Create(context.Background(), &n))
	return n
}

func TestPageWalksInboxNewestFirst(t *testing.T) {
	repo := NewRepository(sqlitetest.Open(t))
	ctx := context.Background()
	user := uuid.New()

	var want []uuid.UUID
	for i := 0; i < 5; i++ {
		n := insertNotification(t, repo, user, inboxEpoch.Add(time.Duration(i)*time.Minute))
		want = append([]uuid.UUID{n.ID}, want...)
	}
	insertNotification(t, repo, uuid.New(), inboxEpoch.Add(time.Hour))

	var got []uuid.UUID
	q := pageQuery{UserID: user, Limit: 2}
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5, "pagination did not terminate")
		rows, next, err := repo.Page(ctx, q)
		require.NoError(t, err)
		for _, row := range rows {
			got = append(got, row.ID)
		}
		if next == nil {
			break
		}
		q.After = next
	}
	assert.Equal(t, want, got)
}

func TestMarkReadOutcomes(t *testing.T) {
	repo := NewRepository(sqlitetest.Open(t))
	ctx := context.Background()
	user := uuid.New()

	first := insertNotification(t, repo, user, inboxEpoch)
	insertNotification(t, repo, user, inboxEpoch.Add(time.Second))

	outcome, err := repo.MarkRead(ctx, uuid.New(), first.ID, inboxEpoch)
	require.NoError(t, err)
	assert.Equal(t, readMissing, outcome, "other users cannot see the row")

	outcome, err = repo.MarkRead(ctx, user, first.ID, inboxEpoch)
	require.NoError(t, err)
	assert.Equal(t, readMarked, outcome)

	outcome, err = repo.MarkRead(ctx, user, first.ID, inboxEpoch)
	require.NoError(t, err)
	assert.Equal(t, readAlready, outcome)

	unread, err := repo.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	rows, _, err := repo.Page(ctx, pageQuery{UserID: user, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEqual(t, first.ID, rows[0].ID)
}

func TestMarkAllReadAndRetention(t *testing.T) {
	repo := NewRepository(sqlitetest.Open(t))
	ctx := context.Background()
	user := uuid.New()

	insertNotification(t, repo, user, inboxEpoch)
	insertNotification(t, repo, user, inboxEpoch)
	insertNotification(t, repo, uuid.New(), inboxEpoch)

	n, err := repo.MarkAllRead(ctx, user, inboxEpoch.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	deleted, err := repo.DeleteReadBefore(ctx, inboxEpoch.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, deleted, "read after the cutoff")

	deleted, err = repo.DeleteReadBefore(ctx, inboxEpoch.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted, "unread rows survive")
}

func TestCreateIgnoresRedeliveredEvent(t *testing.T) {
	conn := sqlitetest.Open(t)
	repo := NewRepository(conn)
	eventID := uuid.New()
	user := uuid.New()

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.Notification{
			ID:        uuid.New(),
			UserID:    user,
			EventID:   &eventID,
			Type:      enums.NotificationTypePaymentVerified,
			Title:     "Payment verified",
			Message:   "your payment was verified",
			CreatedAt: time.Now().UTC(),
		}))
	}

	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
