package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// FulfillmentStepRecord is the persisted state of one workflow step.
type FulfillmentStepRecord struct {
	Step        enums.FulfillmentStep `json:"step"`
	Name        string                `json:"name"`
	Status      enums.StepStatus      `json:"status"`
	Details     string                `json:"details,omitempty"`
	CompletedBy *uuid.UUID            `json:"completed_by,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// FulfillmentSteps holds the seven step records in workflow order.
type FulfillmentSteps [enums.FulfillmentStepCount]FulfillmentStepRecord

// NewFulfillmentSteps returns a step set with every step pending.
func NewFulfillmentSteps() FulfillmentSteps {
	var steps FulfillmentSteps
	for _, step := range enums.AllFulfillmentSteps() {
		steps[step.Index()] = FulfillmentStepRecord{
			Step:   step,
			Name:   step.Name(),
			Status: enums.StepStatusPending,
		}
	}
	return steps
}

// FulfillmentRecord is the per-order fulfillment state machine instance.
type FulfillmentRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	PaymentProofID uuid.UUID `gorm:"column:payment_proof_id;type:uuid;not null;uniqueIndex"`

	BuyerID       uuid.UUID `gorm:"column:buyer_id;type:uuid;not null"`
	BuyerName     string    `gorm:"column:buyer_name;not null"`
	BuyerContact  string    `gorm:"column:buyer_contact;not null"`
	SellerID      uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	SellerName    string    `gorm:"column:seller_name;not null"`
	SellerContact string    `gorm:"column:seller_contact;not null"`
	ListingID     uuid.UUID `gorm:"column:listing_id;type:uuid;not null"`
	ListingTitle  string    `gorm:"column:listing_title;not null"`

	ListingPrice      decimal.Decimal  `gorm:"column:listing_price;type:numeric(12,2);not null"`
	CommissionPercent *decimal.Decimal `gorm:"column:commission_percent;type:numeric(5,2)"`
	CommissionAmount  *decimal.Decimal `gorm:"column:commission_amount;type:numeric(12,2)"`
	BuyerPrice        *decimal.Decimal `gorm:"column:buyer_price;type:numeric(12,2)"`
	OrderAmount       *decimal.Decimal `gorm:"column:order_amount;type:numeric(12,2)"`

	CurrentStep   enums.FulfillmentStep                `gorm:"column:current_step;not null"`
	OverallStatus enums.FulfillmentStatus              `gorm:"column:overall_status;type:fulfillment_status;not null"`
	Steps         datatypes.JSONType[FulfillmentSteps] `gorm:"column:steps;type:jsonb;not null"`
	Version       int                                  `gorm:"column:version;not null;default:1"`
	LastActorID   *uuid.UUID                           `gorm:"column:last_actor_id;type:uuid"`

	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	FailedAt    *time.Time `gorm:"column:failed_at"`
}
