package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tradepost-backend/pkg/db"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/pagination"
)

// readOutcome reports what MarkRead found for a (user, notification) pair.
type readOutcome int

const (
	readMissing readOutcome = iota
	readAlready
	readMarked
)

type pageQuery struct {
	UserID     uuid.UUID
	Limit      int
	After      *pagination.Cursor
	UnreadOnly bool
}

// Repository is the notifications table seen from one user's inbox.
type Repository interface {
	Create(ctx context.Context, n *models.Notification) error
	Page(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (readOutcome, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) inbox(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

// Create skips the insert when (event_id, user_id) already has a row.
// Create ignores a repeated (event, user) pair. A recipient that no longer
// exists is reported as NOT_FOUND.
func (r *repository) Create(ctx context.Context, n *models.Notification) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n).Error
	if db.IsForeignKeyViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "notification recipient not found")
	}
	return err
}

// Page returns newest first. The cursor points at the first row of the next page.
func (r *repository) Page(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error) {
	size := pagination.NormalizeLimit(q.Limit)

	tx := r.inbox(ctx, q.UserID)
	if q.UnreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	if c := q.After; c != nil {
		tx = tx.Where("created_at < ? OR (created_at = ? AND id <= ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}

	var rows []models.Notification
	err := tx.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(size)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	if len(rows) <= size {
		return rows, nil, nil
	}
	next := rows[size]
	return rows[:size], &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
}

func (r *repository) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (readOutcome, error) {
	var row models.Notification
	err := r.inbox(ctx, userID).Select("id", "read_at").Where("id = ?", id).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return readMissing, nil
	case err != nil:
		return readMissing, err
	case row.ReadAt != nil:
		return readAlready, nil
	}

	res := r.inbox(ctx, userID).Where("id = ? AND read_at IS NULL", id).UpdateColumn("read_at", at)
	if res.Error != nil {
		return readMissing, res.Error
	}
	if res.RowsAffected == 0 {
		return readAlready, nil
	}
	return readMarked, nil
}

func (r *repository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.inbox(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

func (r *repository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.inbox(ctx, userID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// DeleteReadBefore is the retention sweep. Unread rows are never removed.
func (r *repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL").
		Where("read_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
