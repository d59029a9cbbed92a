package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/internal/notifications"
	"github.com/angelmondragon/tradepost-backend/internal/payout"
	"github.com/angelmondragon/tradepost-backend/pkg/auth"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/metrics"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tradepost-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ListingSeller marks the listed item as sold to the buyer.
type ListingSeller interface {
	SetSold(ctx context.Context, tx *gorm.DB, listingID, buyerID uuid.UUID) error
}

// Service is the order fulfillment state machine.
type Service interface {
	AdvanceStep(ctx context.Context, input AdvanceStepInput) (*RecordDTO, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*RecordDTO, error)
	List(ctx context.Context, actor auth.Actor, filters ListFilters, page pagination.PageParams) (*ListResult, error)
	GetPayout(ctx context.Context, actor auth.Actor, id uuid.UUID) (*PayoutDTO, error)
}

// AdvanceStepInput is one operator step transition.
type AdvanceStepInput struct {
	RecordID uuid.UUID
	Step     enums.FulfillmentStep
	Outcome  enums.StepOutcome
	Details  string
	Actor    auth.Actor
}

// ServiceParams wires the state machine collaborators.
type ServiceParams struct {
	Repo       Repository
	Tx         txRunner
	Listings   ListingSeller
	Payouts    payout.Service
	Calculator *payout.Calculator
	Outbox     outbox.Emitter
	Notifier   notifications.Sender
	Metrics    *metrics.FulfillmentMetrics
	Logger     *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	listings ListingSeller
	payouts  payout.Service
	calc     *payout.Calculator
	outbox   outbox.Emitter
	notifier notifications.Sender
	metrics  *metrics.FulfillmentMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("fulfillment repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Listings == nil:
		return nil, fmt.Errorf("listing collaborator required")
	case params.Payouts == nil:
		return nil, fmt.Errorf("payout service required")
	case params.Calculator == nil:
		return nil, fmt.Errorf("payout calculator required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		listings: params.Listings,
		payouts:  params.Payouts,
		calc:     params.Calculator,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) AdvanceStep(ctx context.Context, input AdvanceStepInput) (*RecordDTO, error) {
	if err := auth.AuthorizeAdmin(input.Actor); err != nil {
		return nil, err
	}
	if input.RecordID == uuid.Nil {
		return nil, domainError(ErrInvalidIdentifier, "fulfillment record id required")
	}

	transition := Transition{
		Step:    input.Step,
		Outcome: input.Outcome,
		Details: input.Details,
		ActorID: input.Actor.ID,
	}

	var result RecordDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := s.load(ctx, repo, input.RecordID)
		if err != nil {
			return err
		}

		transition.At = s.now()
		expected := record.Version
		changed, err := apply(record, transition)
		if err != nil {
			return err
		}

		rows, err := repo.UpdateState(ctx, record, expected)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist step transition")
		}
		if rows == 0 {
			fresh, err := s.load(ctx, repo, input.RecordID)
			if err != nil {
				return err
			}
			if err := validate(fresh, transition); err != nil {
				return err
			}
			return domainError(ErrConcurrentUpdate, "record changed; refetch and retry")
		}

		if err := s.afterTransition(ctx, tx, record, transition, changed, input.Actor); err != nil {
			return err
		}
		result = FromModel(record, s.calc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(transition.Step.String(), string(transition.Outcome))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"fulfillment_record_id": result.ID.String(),
		"step":                  int(transition.Step),
		"outcome":               transition.Outcome,
		"overall_status":        result.OverallStatus,
	})
	s.logg.Info(s.logg.WithUserID(logCtx, input.Actor.ID.String()), "fulfillment step advanced")
	return &result, nil
}

// afterTransition runs the step side effects on the transaction that
// persisted the transition.
func (s *service) afterTransition(ctx context.Context, tx *gorm.DB, record *models.FulfillmentRecord, t Transition, changed applied, actor auth.Actor) error {
	ref := &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()}
	link := fmt.Sprintf("/orders/%s", record.OrderID)

	if t.Outcome == enums.StepOutcomeFailed {
		if err := s.emit(ctx, tx, enums.EventFulfillmentFailed, enums.AggregateFulfillmentRecord, record.ID, ref, t.At, payloads.FulfillmentFailedEvent{
			FulfillmentRecordID: record.ID,
			OrderID:             record.OrderID,
			BuyerID:             record.BuyerID,
			SellerID:            record.SellerID,
			ListingTitle:        record.ListingTitle,
			Step:                t.Step,
			StepName:            t.Step.Name(),
			Details:             record.Steps.Data()[t.Step.Index()].Details,
			FailedAt:            t.At,
		}); err != nil {
			return err
		}
		s.notifier.Notify(ctx, tx, partyNotifications(record, enums.NotificationTypeOrderFailed,
			"Order could not be completed",
			fmt.Sprintf("Your order for %q stopped at %s. Our team will reach out.", record.ListingTitle, t.Step.Name()),
			link, ref)...)
		return nil
	}

	switch t.Step {
	case enums.StepItemMarkedSold:
		if err := s.listings.SetSold(ctx, tx, record.ListingID, record.BuyerID); err != nil {
			return err
		}
	case enums.StepPaymentReleased:
		if err := s.releasePayment(ctx, tx, record, ref, link); err != nil {
			return err
		}
	}

	steps := record.Steps.Data()
	if err := s.emit(ctx, tx, enums.EventFulfillmentStepCompleted, enums.AggregateFulfillmentRecord, record.ID, ref, t.At, payloads.FulfillmentStepCompletedEvent{
		FulfillmentRecordID: record.ID,
		OrderID:             record.OrderID,
		BuyerID:             record.BuyerID,
		SellerID:            record.SellerID,
		ListingTitle:        record.ListingTitle,
		Step:                t.Step,
		StepName:            t.Step.Name(),
		CurrentStep:         record.CurrentStep,
		Details:             steps[t.Step.Index()].Details,
	}); err != nil {
		return err
	}

	if changed.completedRecord {
		if err := s.emit(ctx, tx, enums.EventFulfillmentCompleted, enums.AggregateFulfillmentRecord, record.ID, ref, t.At, payloads.FulfillmentCompletedEvent{
			FulfillmentRecordID: record.ID,
			OrderID:             record.OrderID,
			BuyerID:             record.BuyerID,
			SellerID:            record.SellerID,
			ListingTitle:        record.ListingTitle,
			CompletedAt:         t.At,
		}); err != nil {
			return err
		}
		s.notifier.Notify(ctx, tx, partyNotifications(record, enums.NotificationTypeOrderUpdate,
			"Order closed",
			fmt.Sprintf("Your order for %q is complete. Thanks for trading with us.", record.ListingTitle),
			link, ref)...)
		return nil
	}

	s.notifier.Notify(ctx, tx, partyNotifications(record, enums.NotificationTypeOrderUpdate,
		fmt.Sprintf("Order update: %s", t.Step.Name()),
		fmt.Sprintf("Your order for %q moved forward: %s.", record.ListingTitle, t.Step.Name()),
		link, ref)...)
	return nil
}

// releasePayment writes the single payout ledger entry for the record. Any
// failure aborts the surrounding transaction.
func (s *service) releasePayment(ctx context.Context, tx *gorm.DB, record *models.FulfillmentRecord, ref *outbox.ActorRef, link string) error {
	breakdown, err := s.calc.Compute(record.ListingPrice, record.OrderAmount, record.CommissionPercent)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute payout")
	}
	entry, err := s.payouts.Record(ctx, tx, payout.RecordPayoutInput{
		FulfillmentRecordID: record.ID,
		OrderID:             record.OrderID,
		SellerID:            record.SellerID,
		ProcessedBy:         ref.UserID,
		Breakdown:           breakdown,
	})
	if err != nil {
		return err
	}
	if err := s.emit(ctx, tx, enums.EventPayoutRecorded, enums.AggregatePayoutLedgerEntry, entry.ID, ref, entry.CreatedAt, payloads.PayoutRecordedEvent{
		LedgerEntryID:       entry.ID,
		FulfillmentRecordID: record.ID,
		OrderID:             record.OrderID,
		SellerID:            record.SellerID,
		GrossAmount:         entry.GrossAmount,
		CommissionAmount:    entry.CommissionAmount,
		CommissionPercent:   entry.CommissionPercent,
		NetSellerAmount:     entry.NetSellerAmount,
	}); err != nil {
		return err
	}
	s.metrics.IncLedgerEntry()
	s.notifier.Notify(ctx, tx, notifications.Request{
		UserID:  record.SellerID,
		Type:    enums.NotificationTypePayoutReleased,
		Title:   "Payout released",
		Message: fmt.Sprintf("Your payout of %s for %q has been released.", entry.NetSellerAmount.StringFixed(2), record.ListingTitle),
		Link:    link,
		Actor:   ref,
	})
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID uuid.UUID, ref *outbox.ActorRef, at time.Time, data any) error {
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		Actor:         ref,
		OccurredAt:    at,
		Data:          data,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("emit %s event", eventType))
	}
	return nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*RecordDTO, error) {
	if err := auth.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, domainError(ErrInvalidIdentifier, "fulfillment record id required")
	}
	record, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(record, s.calc)
	return &dto, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, filters ListFilters, page pagination.PageParams) (*ListResult, error) {
	if err := auth.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if filters.Step != nil && !filters.Step.IsValid() {
		return nil, domainError(ErrOutOfRange, "step filter must be between 1 and 7")
	}
	page = page.Normalize()

	rows, total, err := s.repo.List(ctx, filters, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fulfillment records")
	}
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count fulfillment records by status")
	}
	byStep, err := s.repo.CountByStep(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count fulfillment records by step")
	}

	out := &ListResult{
		Records: make([]RecordDTO, 0, len(rows)),
		Page:    page.Page,
		Limit:   page.Limit,
		Total:   total,
		Counts: Counts{
			ByStatus: make(map[enums.FulfillmentStatus]int64),
			ByStep:   make(map[string]int64, enums.FulfillmentStepCount),
		},
	}
	for _, status := range []enums.FulfillmentStatus{enums.FulfillmentStatusInProgress, enums.FulfillmentStatusCompleted, enums.FulfillmentStatusFailed} {
		out.Counts.ByStatus[status] = byStatus[status]
	}
	for _, step := range enums.AllFulfillmentSteps() {
		out.Counts.ByStep[step.String()] = byStep[step]
	}
	for i := range rows {
		out.Records = append(out.Records, FromModel(&rows[i], s.calc))
	}
	return out, nil
}

func (s *service) GetPayout(ctx context.Context, actor auth.Actor, id uuid.UUID) (*PayoutDTO, error) {
	if err := auth.AuthorizeAdmin(actor); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, domainError(ErrInvalidIdentifier, "fulfillment record id required")
	}
	if _, err := s.load(ctx, s.repo, id); err != nil {
		return nil, err
	}
	entry, err := s.payouts.GetByFulfillmentRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := payoutFromModel(entry)
	return &dto, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.FulfillmentRecord, error) {
	record, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainError(ErrRecordNotFound, "fulfillment record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fulfillment record")
	}
	return record, nil
}

func partyNotifications(record *models.FulfillmentRecord, kind enums.NotificationType, title, message, link string, ref *outbox.ActorRef) []notifications.Request {
	return []notifications.Request{
		{UserID: record.BuyerID, Type: kind, Title: title, Message: message, Link: link, Actor: ref},
		{UserID: record.SellerID, Type: kind, Title: title, Message: message, Link: link, Actor: ref},
	}
}
