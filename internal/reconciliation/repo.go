package reconciliation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// Repository reads the sales that still need a fulfillment record.
type Repository interface {
	ListUnreconciled(ctx context.Context, after uuid.UUID, limit int) ([]models.PaymentProof, error)
	FindOrders(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ListUnreconciled pages verified proofs whose order has no fulfillment
// record yet, ordered by proof id.
func (r *repository) ListUnreconciled(ctx context.Context, after uuid.UUID, limit int) ([]models.PaymentProof, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentProof{}).
		Select("payment_proofs.*").
		Joins("LEFT JOIN fulfillment_records fr ON fr.order_id = payment_proofs.order_id").
		Where("payment_proofs.status = ?", enums.PaymentProofStatusVerified).
		Where("fr.id IS NULL")
	if after != uuid.Nil {
		query = query.Where("payment_proofs.id > ?", after)
	}

	var rows []models.PaymentProof
	if err := query.
		Order("payment_proofs.id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindOrders(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Order, error) {
	out := make(map[uuid.UUID]models.Order, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
