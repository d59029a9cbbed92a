package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	"github.com/angelmondragon/tradepost-backend/pkg/pagination"
)

// Repository persists fulfillment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.FulfillmentRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.FulfillmentRecord, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.FulfillmentRecord, error)
	UpdateState(ctx context.Context, record *models.FulfillmentRecord, expectedVersion int) (int64, error)
	List(ctx context.Context, filters ListFilters, page pagination.PageParams) ([]models.FulfillmentRecord, int64, error)
	CountByStatus(ctx context.Context) (map[enums.FulfillmentStatus]int64, error)
	CountByStep(ctx context.Context) (map[enums.FulfillmentStep]int64, error)
}

// ListFilters narrows the admin order-status listing.
type ListFilters struct {
	Status  *enums.FulfillmentStatus
	Step    *enums.FulfillmentStep
	AdminID *uuid.UUID
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a fulfillment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.FulfillmentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FulfillmentRecord, error) {
	var record models.FulfillmentRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.FulfillmentRecord, error) {
	var record models.FulfillmentRecord
	if err := r.db.WithContext(ctx).First(&record, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateState writes the mutable state machine columns only when the stored
// version still matches expectedVersion, bumping it by one.
func (r *repository) UpdateState(ctx context.Context, record *models.FulfillmentRecord, expectedVersion int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.FulfillmentRecord{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]any{
			"current_step":   record.CurrentStep,
			"overall_status": record.OverallStatus,
			"steps":          record.Steps,
			"last_actor_id":  record.LastActorID,
			"completed_at":   record.CompletedAt,
			"failed_at":      record.FailedAt,
			"updated_at":     record.UpdatedAt,
			"version":        expectedVersion + 1,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 1 {
		record.Version = expectedVersion + 1
	}
	return res.RowsAffected, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, page pagination.PageParams) ([]models.FulfillmentRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FulfillmentRecord{})
	if filters.Status != nil {
		query = query.Where("overall_status = ?", *filters.Status)
	}
	if filters.Step != nil {
		query = query.Where("current_step = ?", *filters.Step)
	}
	if filters.AdminID != nil {
		query = query.Where("last_actor_id = ?", *filters.AdminID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.FulfillmentRecord
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.FulfillmentStatus]int64, error) {
	var rows []struct {
		OverallStatus enums.FulfillmentStatus
		Total         int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.FulfillmentRecord{}).
		Select("overall_status, COUNT(*) AS total").
		Group("overall_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.FulfillmentStatus]int64, len(rows))
	for _, row := range rows {
		out[row.OverallStatus] = row.Total
	}
	return out, nil
}

// CountByStep counts in-progress records by their current step.
func (r *repository) CountByStep(ctx context.Context) (map[enums.FulfillmentStep]int64, error) {
	var rows []struct {
		CurrentStep enums.FulfillmentStep
		Total       int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.FulfillmentRecord{}).
		Where("overall_status = ?", enums.FulfillmentStatusInProgress).
		Select("current_step, COUNT(*) AS total").
		Group("current_step").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.FulfillmentStep]int64, len(rows))
	for _, row := range rows {
		out[row.CurrentStep] = row.Total
	}
	return out, nil
}
