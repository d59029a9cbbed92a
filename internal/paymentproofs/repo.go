package paymentproofs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	"github.com/angelmondragon/tradepost-backend/pkg/pagination"
)

// Repository defines persistence operations for payment proofs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, proof *models.PaymentProof) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error)
	List(ctx context.Context, filters ListFilters, page pagination.PageParams) ([]models.PaymentProof, int64, error)
	MarkVerified(ctx context.Context, id, verifierID uuid.UUID, at time.Time) (int64, error)
	MarkRejected(ctx context.Context, id, verifierID uuid.UUID, reason string, at time.Time) (int64, error)
}

// ListFilters narrows the review queue.
type ListFilters struct {
	Status *enums.PaymentProofStatus
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment proof repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, proof *models.PaymentProof) error {
	return r.db.WithContext(ctx).Create(proof).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error) {
	var proof models.PaymentProof
	if err := r.db.WithContext(ctx).First(&proof, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &proof, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, page pagination.PageParams) ([]models.PaymentProof, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentProof{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PaymentProof
	if err := query.
		Order("uploaded_at ASC").
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// MarkVerified applies the verdict only while the proof is still pending.
func (r *repository) MarkVerified(ctx context.Context, id, verifierID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentProof{}).
		Where("id = ? AND status = ?", id, enums.PaymentProofStatusPendingVerification).
		Updates(map[string]any{
			"status":      enums.PaymentProofStatusVerified,
			"verified_at": at,
			"verifier_id": verifierID,
			"updated_at":  at,
		})
	return res.RowsAffected, res.Error
}

// MarkRejected applies the verdict only while the proof is still pending.
func (r *repository) MarkRejected(ctx context.Context, id, verifierID uuid.UUID, reason string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentProof{}).
		Where("id = ? AND status = ?", id, enums.PaymentProofStatusPendingVerification).
		Updates(map[string]any{
			"status":           enums.PaymentProofStatusRejected,
			"rejection_reason": reason,
			"rejected_at":      at,
			"verifier_id":      verifierID,
			"updated_at":       at,
		})
	return res.RowsAffected, res.Error
}
