package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order binds a buyer to a listing before payment is verified.
type Order struct {
	ID                uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID           uuid.UUID        `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID          uuid.UUID        `gorm:"column:seller_id;type:uuid;not null"`
	ListingID         uuid.UUID        `gorm:"column:listing_id;type:uuid;not null"`
	ChargedAmount     *decimal.Decimal `gorm:"column:charged_amount;type:numeric(12,2)"`
	CommissionPercent *decimal.Decimal `gorm:"column:commission_percent;type:numeric(5,2)"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
