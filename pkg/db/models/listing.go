package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// Listing is an item offered by a seller.
type Listing struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	Title             string              `gorm:"column:title;not null"`
	Price             decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	CommissionPercent *decimal.Decimal    `gorm:"column:commission_percent;type:numeric(5,2)"`
	Status            enums.ListingStatus `gorm:"column:status;type:listing_status;not null;default:active"`
	SoldTo            *uuid.UUID          `gorm:"column:sold_to;type:uuid"`
	SoldAt            *time.Time          `gorm:"column:sold_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
