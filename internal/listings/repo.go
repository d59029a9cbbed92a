package listings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// Repository defines persistence operations for the listings table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	MarkSold(ctx context.Context, id, buyerID uuid.UUID, at time.Time) (int64, error)
	MarkUnavailable(ctx context.Context, id uuid.UUID, at time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a listings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// MarkSold flips a listing that is not yet sold to sold. Returns rows affected.
func (r *repository) MarkSold(ctx context.Context, id, buyerID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status <> ?", id, enums.ListingStatusSold).
		Updates(map[string]any{
			"status":     enums.ListingStatusSold,
			"sold_to":    buyerID,
			"sold_at":    at,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

// MarkUnavailable moves an active listing out of the storefront. Returns rows affected.
func (r *repository) MarkUnavailable(ctx context.Context, id uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, enums.ListingStatusActive).
		Updates(map[string]any{
			"status":     enums.ListingStatusUnavailable,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}
