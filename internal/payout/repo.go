package payout

import (
	"context"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for payout ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.PayoutLedgerEntry) error
	FindByFulfillmentRecordID(ctx context.Context, recordID uuid.UUID) (*models.PayoutLedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.PayoutLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByFulfillmentRecordID(ctx context.Context, recordID uuid.UUID) (*models.PayoutLedgerEntry, error) {
	var entry models.PayoutLedgerEntry
	if err := r.db.WithContext(ctx).
		Where("fulfillment_record_id = ?", recordID).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
