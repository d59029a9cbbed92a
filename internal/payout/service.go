package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
)

var (
	ErrLedgerEntryExists   = errors.New("payout ledger entry already exists")
	ErrLedgerEntryNotFound = errors.New("payout ledger entry not found")
)

// Service records and reads immutable payout ledger entries.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordPayoutInput) (*models.PayoutLedgerEntry, error)
	GetByFulfillmentRecord(ctx context.Context, recordID uuid.UUID) (*models.PayoutLedgerEntry, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// RecordPayoutInput carries the computed split for one fulfillment record.
type RecordPayoutInput struct {
	FulfillmentRecordID uuid.UUID
	OrderID             uuid.UUID
	SellerID            uuid.UUID
	ProcessedBy         uuid.UUID
	Breakdown           Breakdown
}

// NewService wires a payout ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Record writes the ledger entry on the caller's transaction. A second entry
// for the same record is rejected by the unique index.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordPayoutInput) (*models.PayoutLedgerEntry, error) {
	if input.FulfillmentRecordID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment record id is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	if input.ProcessedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processor id is required")
	}

	b := input.Breakdown
	entry := &models.PayoutLedgerEntry{
		ID:                  uuid.New(),
		FulfillmentRecordID: input.FulfillmentRecordID,
		OrderID:             input.OrderID,
		SellerID:            input.SellerID,
		GrossAmount:         b.OrderAmount,
		CommissionAmount:    b.CommissionAmount,
		CommissionPercent:   b.CommissionPercent,
		NetSellerAmount:     b.SellerNet,
		ProcessedBy:         input.ProcessedBy,
		CreatedAt:           s.now(),
	}

	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrLedgerEntryExists, "payout already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout ledger entry")
	}
	return entry, nil
}

func (s *service) GetByFulfillmentRecord(ctx context.Context, recordID uuid.UUID) (*models.PayoutLedgerEntry, error) {
	if recordID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fulfillment record id is required")
	}
	entry, err := s.repo.FindByFulfillmentRecordID(ctx, recordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrLedgerEntryNotFound, "payout not recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout ledger entry")
	}
	return entry, nil
}
