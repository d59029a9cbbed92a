package paymentproofs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/internal/notifications"
	"github.com/angelmondragon/tradepost-backend/pkg/auth"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tradepost-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ListingUpdater hides a listing once its payment is accepted.
type ListingUpdater interface {
	MarkUnavailable(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) error
}

// Service is the payment verification gate plus the admin review queue.
type Service interface {
	Decide(ctx context.Context, input DecideInput) (*PaymentProofDTO, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*PaymentProofDTO, error)
	List(ctx context.Context, actor auth.Actor, filters ListFilters, page pagination.PageParams) (*ListResult, error)
}

// DecideInput is one admin verdict on a pending proof.
type DecideInput struct {
	ProofID  uuid.UUID
	Decision enums.PaymentDecision
	Reason   string
	Actor    auth.Actor
}

type service struct {
	repo     Repository
	tx       txRunner
	listings ListingUpdater
	outbox   outbox.Emitter
	notifier notifications.Sender
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the payment verification gate.
func NewService(repo Repository, tx txRunner, listings ListingUpdater, emitter outbox.Emitter, notifier notifications.Sender, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment proof repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if listings == nil {
		return nil, fmt.Errorf("listing collaborator required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		listings: listings,
		outbox:   emitter,
		notifier: notifier,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Decide(ctx context.Context, input DecideInput) (*PaymentProofDTO, error) {
	if err := auth.AuthorizeAdmin(input.Actor); err != nil {
		return nil, err
	}
	if input.ProofID == uuid.Nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidIdentifier, "payment proof id required")
	}
	if !input.Decision.IsValid() {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidDecision, "decision must be verify or reject")
	}
	reason := strings.TrimSpace(input.Reason)
	if input.Decision == enums.PaymentDecisionReject && reason == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrMissingReason, "rejection reason required")
	}

	var result PaymentProofDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		proof, err := s.load(ctx, repo, input.ProofID)
		if err != nil {
			return err
		}
		if proof.Status.IsDecided() {
			return alreadyProcessed(proof.Status)
		}

		at := s.now()
		var rows int64
		if input.Decision == enums.PaymentDecisionVerify {
			rows, err = repo.MarkVerified(ctx, proof.ID, input.Actor.ID, at)
		} else {
			rows, err = repo.MarkRejected(ctx, proof.ID, input.Actor.ID, reason, at)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment decision")
		}
		if rows == 0 {
			fresh, err := s.load(ctx, repo, input.ProofID)
			if err != nil {
				return err
			}
			return alreadyProcessed(fresh.Status)
		}

		eventType := enums.EventPaymentProofRejected
		if input.Decision == enums.PaymentDecisionVerify {
			s.markListingUnavailable(ctx, tx, proof)
			eventType = enums.EventPaymentProofVerified
		}

		updated, err := s.load(ctx, repo, input.ProofID)
		if err != nil {
			return err
		}

		actor := &outbox.ActorRef{UserID: input.Actor.ID, Role: input.Actor.Role.String()}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePaymentProof,
			AggregateID:   updated.ID,
			Actor:         actor,
			OccurredAt:    at,
			Data: payloads.PaymentProofDecidedEvent{
				PaymentProofID: updated.ID,
				OrderID:        updated.OrderID,
				BuyerID:        updated.BuyerID,
				SellerID:       updated.SellerID,
				ListingID:      updated.ListingID,
				Decision:       input.Decision,
				Status:         updated.Status,
				Reason:         reason,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment decision event")
		}

		s.notifier.Notify(ctx, tx, decisionNotifications(updated.BuyerID, updated.SellerID, updated.OrderID, input.Decision, reason, actor)...)

		result = FromModel(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payment_proof_id": result.ID.String(),
		"decision":         input.Decision,
	})
	s.logg.Info(s.logg.WithUserID(logCtx, input.Actor.ID.String()), "payment proof decided")
	return &result, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*PaymentProofDTO, error) {
	if err := auth.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidIdentifier, "payment proof id required")
	}
	proof, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(proof)
	return &dto, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, filters ListFilters, page pagination.PageParams) (*ListResult, error) {
	if err := auth.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	page = page.Normalize()

	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment proofs")
	}
	out := &ListResult{
		Proofs: make([]PaymentProofDTO, 0, len(rows)),
		Page:   page.Page,
		Limit:  page.Limit,
		Total:  total,
	}
	for i := range rows {
		out.Proofs = append(out.Proofs, FromModel(&rows[i]))
	}
	return out, nil
}

// markListingUnavailable runs in a savepoint. A failure is logged and the
// verification stands.
func (s *service) markListingUnavailable(ctx context.Context, tx *gorm.DB, proof *models.PaymentProof) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		return s.listings.MarkUnavailable(ctx, sp, proof.ListingID)
	})
	if err == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"payment_proof_id": proof.ID.String(),
		"listing_id":       proof.ListingID.String(),
		"error":            err.Error(),
	}), "payment proof listing update failed")
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.PaymentProof, error) {
	proof, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrProofNotFound, "payment proof not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment proof")
	}
	return proof, nil
}

func alreadyProcessed(status enums.PaymentProofStatus) error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrAlreadyProcessed, "payment proof already processed").
		WithDetails(map[string]any{"status": status})
}

func decisionNotifications(buyerID, sellerID, orderID uuid.UUID, decision enums.PaymentDecision, reason string, actor *outbox.ActorRef) []notifications.Request {
	link := fmt.Sprintf("/orders/%s", orderID)
	if decision == enums.PaymentDecisionVerify {
		return []notifications.Request{
			{
				UserID:  buyerID,
				Type:    enums.NotificationTypePaymentVerified,
				Title:   "Payment verified",
				Message: "Your payment was verified. We will contact you to arrange delivery.",
				Link:    link,
				Actor:   actor,
			},
			{
				UserID:  sellerID,
				Type:    enums.NotificationTypePaymentVerified,
				Title:   "Your item was paid for",
				Message: "The buyer's payment was verified. We will contact you to arrange pickup.",
				Link:    link,
				Actor:   actor,
			},
		}
	}
	return []notifications.Request{
		{
			UserID:  buyerID,
			Type:    enums.NotificationTypePaymentRejected,
			Title:   "Payment proof rejected",
			Message: fmt.Sprintf("Your payment proof was rejected: %s", reason),
			Link:    link,
			Actor:   actor,
		},
		{
			UserID:  sellerID,
			Type:    enums.NotificationTypePaymentRejected,
			Title:   "Buyer payment rejected",
			Message: "A payment submitted for your listing could not be verified. Your listing stays available.",
			Link:    link,
			Actor:   actor,
		},
	}
}
