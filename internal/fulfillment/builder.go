package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/angelmondragon/tradepost-backend/internal/payout"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// Party is a buyer or seller snapshot taken at record creation.
type Party struct {
	ID      uuid.UUID
	Name    string
	Contact string
}

// SeedInput carries everything a new record snapshots from the verified sale.
type SeedInput struct {
	OrderID        uuid.UUID
	PaymentProofID uuid.UUID
	Buyer          Party
	Seller         Party
	ListingID      uuid.UUID
	ListingTitle   string
	Breakdown      payout.Breakdown
	VerifiedBy     uuid.UUID
	VerifiedAt     time.Time
	CreatedAt      time.Time
}

// NewSeededRecord builds a record whose first step is already completed by the
// payment verifier, leaving step 2 active.
func NewSeededRecord(in SeedInput) *models.FulfillmentRecord {
	steps := models.NewFulfillmentSteps()
	verifier := in.VerifiedBy
	verifiedAt := in.VerifiedAt
	first := &steps[enums.StepPaymentVerified.Index()]
	first.Status = enums.StepStatusCompleted
	first.Details = "Payment proof verified"
	first.CompletedBy = &verifier
	first.CompletedAt = &verifiedAt

	b := in.Breakdown
	return &models.FulfillmentRecord{
		ID:                uuid.New(),
		OrderID:           in.OrderID,
		PaymentProofID:    in.PaymentProofID,
		BuyerID:           in.Buyer.ID,
		BuyerName:         in.Buyer.Name,
		BuyerContact:      in.Buyer.Contact,
		SellerID:          in.Seller.ID,
		SellerName:        in.Seller.Name,
		SellerContact:     in.Seller.Contact,
		ListingID:         in.ListingID,
		ListingTitle:      in.ListingTitle,
		ListingPrice:      b.ListingPrice,
		CommissionPercent: decimalPtr(b.CommissionPercent),
		CommissionAmount:  decimalPtr(b.CommissionAmount),
		BuyerPrice:        decimalPtr(b.BuyerPrice),
		OrderAmount:       decimalPtr(b.OrderAmount),
		CurrentStep:       nextCurrentStep(steps),
		OverallStatus:     enums.FulfillmentStatusInProgress,
		Steps:             datatypes.NewJSONType(steps),
		Version:           1,
		CreatedAt:         in.CreatedAt,
		UpdatedAt:         in.CreatedAt,
	}
}

func decimalPtr(v decimal.Decimal) *decimal.Decimal {
	return &v
}
