package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// PaymentProof is a buyer-uploaded payment receipt awaiting manual review.
type PaymentProof struct {
	ID              uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID                `gorm:"column:order_id;type:uuid;not null"`
	BuyerID         uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID        uuid.UUID                `gorm:"column:seller_id;type:uuid;not null"`
	ListingID       uuid.UUID                `gorm:"column:listing_id;type:uuid;not null"`
	Amount          decimal.Decimal          `gorm:"column:amount;type:numeric(12,2);not null"`
	ImageURL        string                   `gorm:"column:image_url;not null"`
	Status          enums.PaymentProofStatus `gorm:"column:status;type:payment_proof_status;not null;default:pending_verification"`
	UploadedAt      time.Time                `gorm:"column:uploaded_at;autoCreateTime"`
	VerifiedAt      *time.Time               `gorm:"column:verified_at"`
	VerifierID      *uuid.UUID               `gorm:"column:verifier_id;type:uuid"`
	RejectionReason *string                  `gorm:"column:rejection_reason"`
	RejectedAt      *time.Time               `gorm:"column:rejected_at"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
