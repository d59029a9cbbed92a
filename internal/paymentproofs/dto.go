package paymentproofs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

// PaymentProofDTO is the admin review projection of a proof.
type PaymentProofDTO struct {
	ID              uuid.UUID                `json:"id"`
	OrderID         uuid.UUID                `json:"order_id"`
	BuyerID         uuid.UUID                `json:"buyer_id"`
	SellerID        uuid.UUID                `json:"seller_id"`
	ListingID       uuid.UUID                `json:"listing_id"`
	Amount          decimal.Decimal          `json:"amount"`
	ImageURL        string                   `json:"image_url"`
	Status          enums.PaymentProofStatus `json:"status"`
	UploadedAt      time.Time                `json:"uploaded_at"`
	VerifiedAt      *time.Time               `json:"verified_at,omitempty"`
	VerifierID      *uuid.UUID               `json:"verifier_id,omitempty"`
	RejectionReason *string                  `json:"rejection_reason,omitempty"`
	RejectedAt      *time.Time               `json:"rejected_at,omitempty"`
}

// ListResult is a page of proofs with the total matching the filters.
type ListResult struct {
	Proofs []PaymentProofDTO `json:"proofs"`
	Page   int               `json:"page"`
	Limit  int               `json:"limit"`
	Total  int64             `json:"total"`
}

func FromModel(p *models.PaymentProof) PaymentProofDTO {
	return PaymentProofDTO{
		ID:              p.ID,
		OrderID:         p.OrderID,
		BuyerID:         p.BuyerID,
		SellerID:        p.SellerID,
		ListingID:       p.ListingID,
		Amount:          p.Amount,
		ImageURL:        p.ImageURL,
		Status:          p.Status,
		UploadedAt:      p.UploadedAt,
		VerifiedAt:      p.VerifiedAt,
		VerifierID:      p.VerifierID,
		RejectionReason: p.RejectionReason,
		RejectedAt:      p.RejectedAt,
	}
}
