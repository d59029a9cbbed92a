package payloads

import (
	"time"

	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentProofDecidedEvent is emitted when an admin verifies or rejects a proof.
type PaymentProofDecidedEvent struct {
	PaymentProofID uuid.UUID                `json:"payment_proof_id"`
	OrderID        uuid.UUID                `json:"order_id"`
	BuyerID        uuid.UUID                `json:"buyer_id"`
	SellerID       uuid.UUID                `json:"seller_id"`
	ListingID      uuid.UUID                `json:"listing_id"`
	Decision       enums.PaymentDecision    `json:"decision"`
	Status         enums.PaymentProofStatus `json:"status"`
	Reason         string                   `json:"reason,omitempty"`
}

// FulfillmentRecordCreatedEvent is emitted by reconciliation for each new record.
type FulfillmentRecordCreatedEvent struct {
	FulfillmentRecordID uuid.UUID `json:"fulfillment_record_id"`
	OrderID             uuid.UUID `json:"order_id"`
	PaymentProofID      uuid.UUID `json:"payment_proof_id"`
	BuyerID             uuid.UUID `json:"buyer_id"`
	SellerID            uuid.UUID `json:"seller_id"`
	ListingTitle        string    `json:"listing_title"`
}

// FulfillmentStepCompletedEvent carries a single completed step.
type FulfillmentStepCompletedEvent struct {
	FulfillmentRecordID uuid.UUID             `json:"fulfillment_record_id"`
	OrderID             uuid.UUID             `json:"order_id"`
	BuyerID             uuid.UUID             `json:"buyer_id"`
	SellerID            uuid.UUID             `json:"seller_id"`
	ListingTitle        string                `json:"listing_title"`
	Step                enums.FulfillmentStep `json:"step"`
	StepName            string                `json:"step_name"`
	CurrentStep         enums.FulfillmentStep `json:"current_step"`
	Details             string                `json:"details"`
}

// FulfillmentFailedEvent is emitted when the active step is failed.
type FulfillmentFailedEvent struct {
	FulfillmentRecordID uuid.UUID             `json:"fulfillment_record_id"`
	OrderID             uuid.UUID             `json:"order_id"`
	BuyerID             uuid.UUID             `json:"buyer_id"`
	SellerID            uuid.UUID             `json:"seller_id"`
	ListingTitle        string                `json:"listing_title"`
	Step                enums.FulfillmentStep `json:"step"`
	StepName            string                `json:"step_name"`
	Details             string                `json:"details"`
	FailedAt            time.Time             `json:"failed_at"`
}

// FulfillmentCompletedEvent is emitted once all seven steps are complete.
type FulfillmentCompletedEvent struct {
	FulfillmentRecordID uuid.UUID `json:"fulfillment_record_id"`
	OrderID             uuid.UUID `json:"order_id"`
	BuyerID             uuid.UUID `json:"buyer_id"`
	SellerID            uuid.UUID `json:"seller_id"`
	ListingTitle        string    `json:"listing_title"`
	CompletedAt         time.Time `json:"completed_at"`
}

// PayoutRecordedEvent mirrors the payout ledger entry written at payment release.
type PayoutRecordedEvent struct {
	LedgerEntryID       uuid.UUID       `json:"ledger_entry_id"`
	FulfillmentRecordID uuid.UUID       `json:"fulfillment_record_id"`
	OrderID             uuid.UUID       `json:"order_id"`
	SellerID            uuid.UUID       `json:"seller_id"`
	GrossAmount         decimal.Decimal `json:"gross_amount"`
	CommissionAmount    decimal.Decimal `json:"commission_amount"`
	CommissionPercent   decimal.Decimal `json:"commission_percent"`
	NetSellerAmount     decimal.Decimal `json:"net_seller_amount"`
}

// NotificationRequestedEvent asks the notification worker to alert one user.
type NotificationRequestedEvent struct {
	UserID  uuid.UUID              `json:"user_id"`
	Type    enums.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Link    *string                `json:"link,omitempty"`
}
