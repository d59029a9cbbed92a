package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradepost-backend/internal/payout"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
)

type PartyDTO struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Contact string    `json:"contact"`
}

type ListingSnapshotDTO struct {
	ID    uuid.UUID       `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

type StepDTO struct {
	Step        enums.FulfillmentStep `json:"step"`
	Name        string                `json:"name"`
	Status      enums.StepStatus      `json:"status"`
	Details     string                `json:"details,omitempty"`
	CompletedBy *uuid.UUID            `json:"completed_by,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// RecordDTO is the read projection of a fulfillment record.
type RecordDTO struct {
	ID                uuid.UUID               `json:"id"`
	OrderID           uuid.UUID               `json:"order_id"`
	PaymentProofID    uuid.UUID               `json:"payment_proof_id"`
	Buyer             PartyDTO                `json:"buyer"`
	Seller            PartyDTO                `json:"seller"`
	Listing           ListingSnapshotDTO      `json:"listing"`
	CommissionPercent decimal.Decimal         `json:"commission_percent"`
	CommissionAmount  decimal.Decimal         `json:"commission_amount"`
	BuyerPrice        decimal.Decimal         `json:"buyer_price"`
	OrderAmount       decimal.Decimal         `json:"order_amount"`
	CurrentStep       enums.FulfillmentStep   `json:"current_step"`
	OverallStatus     enums.FulfillmentStatus `json:"overall_status"`
	Steps             []StepDTO               `json:"steps"`
	LastActorID       *uuid.UUID              `json:"last_actor_id,omitempty"`
	Version           int                     `json:"version"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	CompletedAt       *time.Time              `json:"completed_at,omitempty"`
	FailedAt          *time.Time              `json:"failed_at,omitempty"`
}

// Counts aggregates records for the listing header.
type Counts struct {
	ByStatus map[enums.FulfillmentStatus]int64 `json:"by_status"`
	ByStep   map[string]int64                  `json:"by_step"`
}

type ListResult struct {
	Records []RecordDTO `json:"records"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	Total   int64       `json:"total"`
	Counts  Counts      `json:"counts"`
}

type PayoutDTO struct {
	ID                  uuid.UUID       `json:"id"`
	FulfillmentRecordID uuid.UUID       `json:"fulfillment_record_id"`
	OrderID             uuid.UUID       `json:"order_id"`
	SellerID            uuid.UUID       `json:"seller_id"`
	GrossAmount         decimal.Decimal `json:"gross_amount"`
	CommissionAmount    decimal.Decimal `json:"commission_amount"`
	CommissionPercent   decimal.Decimal `json:"commission_percent"`
	NetSellerAmount     decimal.Decimal `json:"net_seller_amount"`
	ProcessedBy         uuid.UUID       `json:"processed_by"`
	CreatedAt           time.Time       `json:"created_at"`
}

// FromModel projects a record. Records written before the commission columns
// existed get them derived from the listing snapshot and the calculator default.
func FromModel(record *models.FulfillmentRecord, calc *payout.Calculator) RecordDTO {
	dto := RecordDTO{
		ID:             record.ID,
		OrderID:        record.OrderID,
		PaymentProofID: record.PaymentProofID,
		Buyer:          PartyDTO{ID: record.BuyerID, Name: record.BuyerName, Contact: record.BuyerContact},
		Seller:         PartyDTO{ID: record.SellerID, Name: record.SellerName, Contact: record.SellerContact},
		Listing:        ListingSnapshotDTO{ID: record.ListingID, Title: record.ListingTitle, Price: record.ListingPrice},
		CurrentStep:    record.CurrentStep,
		OverallStatus:  record.OverallStatus,
		LastActorID:    record.LastActorID,
		Version:        record.Version,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
		CompletedAt:    record.CompletedAt,
		FailedAt:       record.FailedAt,
	}

	if breakdown, err := calc.Compute(record.ListingPrice, record.OrderAmount, record.CommissionPercent); err == nil {
		dto.CommissionPercent = breakdown.CommissionPercent
		dto.CommissionAmount = breakdown.CommissionAmount
		dto.BuyerPrice = breakdown.BuyerPrice
		dto.OrderAmount = breakdown.OrderAmount
	}
	if record.CommissionAmount != nil {
		dto.CommissionAmount = *record.CommissionAmount
	}
	if record.BuyerPrice != nil {
		dto.BuyerPrice = *record.BuyerPrice
	}

	steps := record.Steps.Data()
	dto.Steps = make([]StepDTO, 0, len(steps))
	for _, step := range steps {
		dto.Steps = append(dto.Steps, StepDTO{
			Step:        step.Step,
			Name:        step.Name,
			Status:      step.Status,
			Details:     step.Details,
			CompletedBy: step.CompletedBy,
			CompletedAt: step.CompletedAt,
		})
	}
	return dto
}

func payoutFromModel(entry *models.PayoutLedgerEntry) PayoutDTO {
	return PayoutDTO{
		ID:                  entry.ID,
		FulfillmentRecordID: entry.FulfillmentRecordID,
		OrderID:             entry.OrderID,
		SellerID:            entry.SellerID,
		GrossAmount:         entry.GrossAmount,
		CommissionAmount:    entry.CommissionAmount,
		CommissionPercent:   entry.CommissionPercent,
		NetSellerAmount:     entry.NetSellerAmount,
		ProcessedBy:         entry.ProcessedBy,
		CreatedAt:           entry.CreatedAt,
	}
}
