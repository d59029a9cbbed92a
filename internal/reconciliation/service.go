package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/internal/fulfillment"
	"github.com/angelmondragon/tradepost-backend/internal/listings"
	"github.com/angelmondragon/tradepost-backend/internal/notifications"
	"github.com/angelmondragon/tradepost-backend/internal/payout"
	"github.com/angelmondragon/tradepost-backend/pkg/db"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/metrics"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
)

const defaultBatchSize = 200

// Skip reasons reported on unreconcilable proofs.
const (
	SkipOrderMissing    = "order_missing"
	SkipBuyerMissing    = "buyer_missing"
	SkipSellerMissing   = "seller_missing"
	SkipListingMissing  = "listing_missing"
	SkipVerifierMissing = "verifier_missing"
	SkipInvalidAmount   = "invalid_amount"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
	ListActiveAdminIDs(ctx context.Context) ([]uuid.UUID, error)
}

type listingLookup interface {
	Get(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
}

// Result summarizes one sync run.
type Result struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// ServiceParams wires the reconciliation job.
type ServiceParams struct {
	Repo       Repository
	Records    fulfillment.Repository
	Tx         txRunner
	Users      userLookup
	Listings   listingLookup
	Calculator *payout.Calculator
	Outbox     outbox.Emitter
	Notifier   notifications.Sender
	Metrics    *metrics.ReconciliationMetrics
	Logger     *logger.Logger
	BatchSize  int
}

// Service turns verified payment proofs into fulfillment records.
type Service struct {
	repo      Repository
	records   fulfillment.Repository
	tx        txRunner
	users     userLookup
	listings  listingLookup
	calc      *payout.Calculator
	outbox    outbox.Emitter
	notifier  notifications.Sender
	metrics   *metrics.ReconciliationMetrics
	logg      *logger.Logger
	batchSize int
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("reconciliation repository required")
	case params.Records == nil:
		return nil, fmt.Errorf("fulfillment repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Users == nil:
		return nil, fmt.Errorf("user lookup required")
	case params.Listings == nil:
		return nil, fmt.Errorf("listing lookup required")
	case params.Calculator == nil:
		return nil, fmt.Errorf("payout calculator required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Service{
		repo:      params.Repo,
		records:   params.Records,
		tx:        params.Tx,
		users:     params.Users,
		listings:  params.Listings,
		calc:      params.Calculator,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
		batchSize: batch,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sync creates one fulfillment record per verified proof that lacks one.
// Unreconcilable proofs are skipped and logged. Infrastructure failures on
// individual proofs are collected and returned alongside the partial result.
func (s *Service) Sync(ctx context.Context) (Result, error) {
	var (
		result Result
		errs   error
		after  uuid.UUID
	)
	for {
		proofs, err := s.repo.ListUnreconciled(ctx, after, s.batchSize)
		if err != nil {
			return result, multierr.Append(errs, fmt.Errorf("list unreconciled proofs: %w", err))
		}
		if len(proofs) == 0 {
			break
		}
		after = proofs[len(proofs)-1].ID

		created, skipped, err := s.syncBatch(ctx, proofs)
		result.Created += created
		result.Skipped += skipped
		errs = multierr.Append(errs, err)

		if len(proofs) < s.batchSize {
			break
		}
	}

	s.metrics.AddCreated(result.Created)
	if result.Created > 0 {
		s.notifyAdmins(ctx, result.Created)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"created": result.Created,
		"skipped": result.Skipped,
	}), "reconciliation sync finished")
	return result, errs
}

func (s *Service) syncBatch(ctx context.Context, proofs []models.PaymentProof) (int, int, error) {
	orderIDs := make([]uuid.UUID, 0, len(proofs))
	for _, proof := range proofs {
		orderIDs = append(orderIDs, proof.OrderID)
	}
	orders, err := s.repo.FindOrders(ctx, orderIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("load orders: %w", err)
	}
	// parties come from the order, which is what buildRecord snapshots
	userIDs := make([]uuid.UUID, 0, len(orders)*2)
	for _, order := range orders {
		userIDs = append(userIDs, order.BuyerID, order.SellerID)
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("load users: %w", err)
	}

	var (
		created, skipped int
		errs             error
	)
	for i := range proofs {
		proof := &proofs[i]
		record, reason, err := s.buildRecord(ctx, proof, orders, users)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("proof %s: %w", proof.ID, err))
			continue
		}
		if reason != "" {
			skipped++
			s.skip(ctx, proof, reason)
			continue
		}

		ok, err := s.create(ctx, record)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("proof %s: %w", proof.ID, err))
			continue
		}
		if ok {
			created++
		}
	}
	return created, skipped, errs
}

// buildRecord resolves the sale around proof. A non-empty reason means the
// proof cannot be reconciled.
func (s *Service) buildRecord(ctx context.Context, proof *models.PaymentProof, orders map[uuid.UUID]models.Order, users map[uuid.UUID]models.User) (*models.FulfillmentRecord, string, error) {
	order, ok := orders[proof.OrderID]
	if !ok {
		return nil, SkipOrderMissing, nil
	}
	buyer, ok := users[order.BuyerID]
	if !ok {
		return nil, SkipBuyerMissing, nil
	}
	seller, ok := users[order.SellerID]
	if !ok {
		return nil, SkipSellerMissing, nil
	}
	if proof.VerifierID == nil {
		return nil, SkipVerifierMissing, nil
	}
	listing, err := s.listings.Get(ctx, order.ListingID)
	if err != nil {
		if isNotFound(err) {
			return nil, SkipListingMissing, nil
		}
		return nil, "", err
	}

	breakdown, err := s.calc.Compute(listing.Price, order.ChargedAmount, order.CommissionPercent, listing.CommissionPercent)
	if err != nil {
		return nil, SkipInvalidAmount, nil
	}

	now := s.now()
	verifiedAt := now
	if proof.VerifiedAt != nil {
		verifiedAt = *proof.VerifiedAt
	}
	return fulfillment.NewSeededRecord(fulfillment.SeedInput{
		OrderID:        order.ID,
		PaymentProofID: proof.ID,
		Buyer:          fulfillment.Party{ID: buyer.ID, Name: buyer.Name, Contact: buyer.Contact()},
		Seller:         fulfillment.Party{ID: seller.ID, Name: seller.Name, Contact: seller.Contact()},
		ListingID:      listing.ID,
		ListingTitle:   listing.Title,
		Breakdown:      breakdown,
		VerifiedBy:     *proof.VerifierID,
		VerifiedAt:     verifiedAt,
		CreatedAt:      now,
	}), "", nil
}

// create inserts the record and its creation event. A record that already
// exists for the order is reported as not created.
func (s *Service) create(ctx context.Context, record *models.FulfillmentRecord) (bool, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.records.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFulfillmentRecordCreated,
			AggregateType: enums.AggregateFulfillmentRecord,
			AggregateID:   record.ID,
			OccurredAt:    record.CreatedAt,
			Data: payloads.FulfillmentRecordCreatedEvent{
				FulfillmentRecordID: record.ID,
				OrderID:             record.OrderID,
				PaymentProofID:      record.PaymentProofID,
				BuyerID:             record.BuyerID,
				SellerID:            record.SellerID,
				ListingTitle:        record.ListingTitle,
			},
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) skip(ctx context.Context, proof *models.PaymentProof, reason string) {
	s.metrics.IncSkipped(reason)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_proof_id": proof.ID.String(),
		"order_id":         proof.OrderID.String(),
		"reason":           reason,
	})
	s.logg.Warn(logCtx, "payment proof unreconcilable")
}

func (s *Service) notifyAdmins(ctx context.Context, created int) {
	admins, err := s.users.ListActiveAdminIDs(ctx)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("list admins for reconciliation notice: %v", err))
		return
	}
	if len(admins) == 0 {
		return
	}
	requests := make([]notifications.Request, 0, len(admins))
	for _, id := range admins {
		requests = append(requests, notifications.Request{
			UserID:  id,
			Type:    enums.NotificationTypeOrderUpdate,
			Title:   "New orders to fulfill",
			Message: fmt.Sprintf("%d verified order(s) are ready for fulfillment.", created),
			Link:    "/admin/order-status",
		})
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		s.notifier.Notify(ctx, tx, requests...)
		return nil
	}); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("reconciliation notice: %v", err))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, listings.ErrListingNotFound) || pkgerrors.HasCode(err, pkgerrors.CodeNotFound)
}
