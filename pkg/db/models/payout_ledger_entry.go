package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutLedgerEntry is the immutable seller payout calculation written at the
// payment release step.
type PayoutLedgerEntry struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FulfillmentRecordID uuid.UUID       `gorm:"column:fulfillment_record_id;type:uuid;not null;uniqueIndex"`
	OrderID             uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	SellerID            uuid.UUID       `gorm:"column:seller_id;type:uuid;not null"`
	GrossAmount         decimal.Decimal `gorm:"column:gross_amount;type:numeric(12,2);not null"`
	CommissionAmount    decimal.Decimal `gorm:"column:commission_amount;type:numeric(12,2);not null"`
	CommissionPercent   decimal.Decimal `gorm:"column:commission_percent;type:numeric(5,2);not null"`
	NetSellerAmount     decimal.Decimal `gorm:"column:net_seller_amount;type:numeric(12,2);not null"`
	ProcessedBy         uuid.UUID       `gorm:"column:processed_by;type:uuid;not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
}
