package fulfillment

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/internal/listings"
	"github.com/angelmondragon/tradepost-backend/internal/notifications"
	"github.com/angelmondragon/tradepost-backend/internal/payout"
	"github.com/angelmondragon/tradepost-backend/pkg/auth"
	"github.com/angelmondragon/tradepost-backend/pkg/db"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
	"github.com/angelmondragon/tradepost-backend/pkg/logger"
	"github.com/angelmondragon/tradepost-backend/pkg/metrics"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/pagination"
)

type recordingSender struct {
	mu       sync.Mutex
	requests []notifications.Request
}

func (r *recordingSender) Notify(ctx context.Context, tx *gorm.DB, requests ...notifications.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, requests...)
}

type harness struct {
	conn   *gorm.DB
	repo   Repository
	svc    Service
	calc   *payout.Calculator
	sender *recordingSender
	reg    *prometheus.Registry
}

func newHarness(t *testing.T) harness {
	t.Helper()
	conn := sqlitetest.Open(t)
	return newHarnessWithRepo(t, conn, NewRepository(conn))
}

func newHarnessWithRepo(t *testing.T, conn *gorm.DB, repo Repository) harness {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	listingSvc, err := listings.NewService(listings.NewRepository(conn))
	require.NoError(t, err)
	payouts, err := payout.NewService(payout.NewRepository(conn))
	require.NoError(t, err)
	calc, err := payout.NewCalculator(decimal.NewFromInt(10))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	sender := &recordingSender{}

	svc, err := NewService(ServiceParams{
		Repo:       repo,
		Tx:         db.NewFromConn(conn),
		Listings:   listingSvc,
		Payouts:    payouts,
		Calculator: calc,
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logg),
		Notifier:   sender,
		Metrics:    metrics.NewFulfillmentMetrics(reg),
		Logger:     logg,
	})
	require.NoError(t, err)
	return harness{conn: conn, repo: repo, svc: svc, calc: calc, sender: sender, reg: reg}
}

// seedRecord stores a record for a verified sale the way reconciliation does.
func (h harness) seedRecord(t *testing.T, opts sqlitetest.SaleOptions) (sqlitetest.Sale, *models.FulfillmentRecord) {
	t.Helper()
	opts.ProofStatus = enums.PaymentProofStatusVerified
	sale := sqlitetest.SeedSale(t, h.conn, opts)
	breakdown, err := h.calc.Compute(sale.Listing.Price, sale.Order.ChargedAmount, sale.Order.CommissionPercent, sale.Listing.CommissionPercent)
	require.NoError(t, err)
	now := time.Now().UTC()
	record := NewSeededRecord(SeedInput{
		OrderID:        sale.Order.ID,
		PaymentProofID: sale.Proof.ID,
		Buyer:          Party{ID: sale.Buyer.ID, Name: sale.Buyer.Name, Contact: *sale.Buyer.Phone},
		Seller:         Party{ID: sale.Seller.ID, Name: sale.Seller.Name, Contact: *sale.Seller.Phone},
		ListingID:      sale.Listing.ID,
		ListingTitle:   sale.Listing.Title,
		Breakdown:      breakdown,
		VerifiedBy:     sale.Admin.ID,
		VerifiedAt:     now,
		CreatedAt:      now,
	})
	require.NoError(t, h.repo.Create(context.Background(), record))
	return sale, record
}

func admin(sale sqlitetest.Sale) auth.Actor {
	return auth.Actor{ID: sale.Admin.ID, Role: enums.UserRoleAdmin}
}

func advance(step enums.FulfillmentStep, outcome enums.StepOutcome, details string, sale sqlitetest.Sale, id uuid.UUID) AdvanceStepInput {
	return AdvanceStepInput{RecordID: id, Step: step, Outcome: outcome, Details: details, Actor: admin(sale)}
}

func eventCount(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func transitionCount(t *testing.T, reg *prometheus.Registry, step, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "fulfillment_step_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["step"] == step && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestAdvanceStepThroughCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	charged := decimal.NewFromInt(1100)
	sale, record := h.seedRecord(t, sqlitetest.SaleOptions{ChargedAmount: &charged})

	for step := enums.StepItemMarkedSold; step <= enums.LastFulfillmentStep; step++ {
		got, err := h.svc.AdvanceStep(ctx, advance(step, enums.StepOutcomeCompleted, "done "+step.Name(), sale, record.ID))
		require.NoError(t, err, "step %d", step)

		completed := 0
		for _, s := range got.Steps {
			if s.Status != enums.StepStatusCompleted {
				break
			}
			completed++
		}
		want := completed + 1
		if want > enums.FulfillmentStepCount {
			want = enums.FulfillmentStepCount
		}
		assert.Equal(t, enums.FulfillmentStep(want), got.CurrentStep)

		if step == enums.StepItemMarkedSold {
			var listing models.Listing
			require.NoError(t, h.conn.First(&listing, "id = ?", sale.Listing.ID).Error)
			assert.Equal(t, enums.ListingStatusSold, listing.Status)
			require.NotNil(t, listing.SoldTo)
			assert.Equal(t, sale.Buyer.ID, *listing.SoldTo)
		}
	}

	stored, err := h.repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FulfillmentStatusCompleted, stored.OverallStatus)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, 7, stored.Version)
	require.NotNil(t, stored.LastActorID)
	assert.Equal(t, sale.Admin.ID, *stored.LastActorID)

	entry, err := h.svc.GetPayout(ctx, admin(sale), record.ID)
	require.NoError(t, err)
	assert.True(t, entry.GrossAmount.Equal(charged))
	assert.True(t, entry.CommissionAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, entry.NetSellerAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, entry.NetSellerAmount.Add(entry.CommissionAmount).Equal(entry.GrossAmount))

	assert.Equal(t, int64(6), eventCount(t, h.conn, enums.EventFulfillmentStepCompleted))
	assert.Equal(t, int64(1), eventCount(t, h.conn, enums.EventPayoutRecorded))
	assert.Equal(t, int64(1), eventCount(t, h.conn, enums.EventFulfillmentCompleted))
	assert.Equal(t, float64(1), transitionCount(t, h.reg, "6", "completed"))

	for _, step := range enums.AllFulfillmentSteps() {
		_, err := h.svc.AdvanceStep(ctx, advance(step, enums.StepOutcomeCompleted, "again", sale, record.ID))
		require.ErrorIs(t, err, ErrAlreadyTerminal)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	}
	again, err := h.repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Version, again.Version)
}

func TestAdvanceStepValidationLeavesRecordUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sale, record := h.seedRecord(t, sqlitetest.SaleOptions{})

	cases := []struct {
		in   AdvanceStepInput
		want error
	}{
		{advance(0, enums.StepOutcomeCompleted, "x", sale, record.ID), ErrOutOfRange},
		{advance(8, enums.StepOutcomeCompleted, "x", sale, record.ID), ErrOutOfRange},
		{advance(4, enums.StepOutcomeCompleted, "x", sale, record.ID), ErrStepSkipped},
		{advance(3, enums.StepOutcomeCompleted, "x", sale, record.ID), ErrPriorStepIncomplete},
		{advance(2, enums.StepOutcomeCompleted, "", sale, record.ID), ErrMissingDetails},
		{advance(3, enums.StepOutcomeFailed, "x", sale, record.ID), ErrNotCurrentStep},
		{advance(1, enums.StepOutcomeCompleted, "x", sale, record.ID), ErrStepAlreadyCompleted},
		{advance(2, enums.StepOutcomeCompleted, "x", sale, uuid.New()), ErrRecordNotFound},
	}
	for _, tc := range cases {
		_, err := h.svc.AdvanceStep(ctx, tc.in)
		require.ErrorIs(t, err, tc.want)
	}

	stored, err := h.repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
	assert.Equal(t, enums.StepItemMarkedSold, stored.CurrentStep)
	assert.Empty(t, h.sender.requests)
}

func TestAdvanceStepRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	sale, record := h.seedRecord(t, sqlitetest.SaleOptions{})

	in := advance(2, enums.StepOutcomeCompleted, "x", sale, record.ID)
	in.Actor = auth.Actor{ID: sale.Buyer.ID, Role: enums.UserRoleUser}
	_, err := h.svc.AdvanceStep(context.Background(), in)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	in.Actor = auth.Actor{}
	_, err = h.svc.AdvanceStep(context.Background(), in)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestAdvanceStepFailureIsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sale, record := h.seedRecord(t, sqlitetest.SaleOptions{})

	got, err := h.svc.AdvanceStep(ctx, advance(2, enums.StepOutcomeFailed, "item damaged", sale, record.ID))
	require.NoError(t, err)
	assert.Equal(t, enums.FulfillmentStatusFailed, got.OverallStatus)
	assert.NotNil(t, got.FailedAt)
	assert.Equal(t, enums.StepStatusFailed, got.Steps[1].Status)
	assert.Equal(t, "item damaged", got.Steps[1].Details)

	var listing models.Listing
	require.NoError(t, h.conn.First(&listing, "id = ?", sale.Listing.ID).Error)
	assert.NotEqual(t, enums.ListingStatusSold, listing.Status)

	_, err = h.svc.AdvanceStep(ctx, advance(2, enums.StepOutcomeCompleted, "retry", sale, record.ID))
	require.ErrorIs(t, err, ErrAlreadyTerminal)
	_, err = h.svc.AdvanceStep(ctx, advance(2, enums.StepOutcomeFailed, "again", sale, record.ID))
	require.ErrorIs(t, err, ErrAlreadyTerminal)

	assert.Equal(t, int64(1), eventCount(t, h.conn, enums.EventFulfillmentFailed))
	require.Len(t, h.sender.requests, 2)
	assert.Equal(t, enums.NotificationTypeOrderFailed, h.sender.requests[0].Type)
}

func TestPaymentReleaseFailureRollsBackStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sale, record := h.seedRecord(t, sqlitetest.SaleOptions{})

	for step := enums.StepItemMarkedSold; step < enums.StepPaymentReleased; step++ {
		_, err := h.svc.AdvanceStep(ctx, advance(step, enums.StepOutcomeCompleted, "ok", sale, record.ID))
		require.NoError(t, err)
	}

	blocking := models.PayoutLedgerEntry{
		ID:                  uuid.New(),
		FulfillmentRecordID: record.ID,
		OrderID:             record.OrderID,
		SellerID:            record.SellerID,
		GrossAmount:         decimal.NewFromInt(1),
		CommissionAmount:    decimal.Zero,
		CommissionPercent:   decimal.Zero,
		NetSellerAmount:     decimal.NewFromInt(1),
		ProcessedBy:         sale.Admin.ID,
		CreatedAt:           time.Now().UTC(),
	}
	require.NoError(t, h.conn.Create(&blocking).Error)

	_, err := h.svc.AdvanceStep(ctx, advance(enums.StepPaymentReleased, enums.StepOutcomeCompleted, "paid out", sale, record.ID))
	require.ErrorIs(t, err, payout.ErrLedgerEntryExists)

	stored, err := h.repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.StepPaymentReleased, stored.CurrentStep)
	assert.Equal(t, enums.StepStatusPending, stored.Steps.Data()[enums.StepPaymentReleased.Index()].Status)
	assert.Equal(t, int64(4), eventCount(t, h.conn, enums.EventFulfillmentStepCompleted))
	assert.Zero(t, eventCount(t, h.conn, enums.EventPayoutRecorded))
}

// staleRepository serves a snapshot taken before another writer advanced the
// record, for the first read only.
type staleRepository struct {
	Repository
	snapshot *models.FulfillmentRecord
	served   *bool
}

func (r staleRepository) WithTx(tx *gorm.DB) Repository {
	return staleRepository{Repository: r.Repository.WithTx(tx), snapshot: r.snapshot, served: r.served}
}

func (r staleRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.FulfillmentRecord, error) {
	if !*r.served && id == r.snapshot.ID {
		*r.served = true
		copied := *r.snapshot
		return &copied, nil
	}
	return r.Repository.FindByID(ctx, id)
}

func TestAdvanceStepLoserOfRaceGetsConflict(t *testing.T) {
	conn := sqlitetest.Open(t)
	base := NewRepository(conn)
	h := newHarnessWithRepo(t, conn, base)
	ctx := context.Background()
	sale, record := h.seedRecord(t, sqlitetest.SaleOptions{})

	snapshot, err := base.FindByID(ctx, record.ID)
	require.NoError(t, err)

	_, err = h.svc.AdvanceStep(ctx, advance(2, enums.StepOutcomeCompleted, "marked sold", sale, record.ID))
	require.NoError(t, err)

	served := false
	stale := newHarnessWithRepo(t, conn, staleRepository{Repository: base, snapshot: snapshot, served: &served})

	_, err = stale.svc.AdvanceStep(ctx, advance(2, enums.StepOutcomeCompleted, "marked sold twice", sale, record.ID))
	require.ErrorIs(t, err, ErrStepAlreadyCompleted)
	assert.True(t, served)

	served = false
	_, err = stale.svc.AdvanceStep(ctx, advance(2, enums.StepOutcomeFailed, "lost it", sale, record.ID))
	require.ErrorIs(t, err, ErrNotCurrentStep)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	stored, err := base.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.Equal(t, "marked sold", stored.Steps.Data()[1].Details)
	assert.Equal(t, int64(1), eventCount(t, conn, enums.EventFulfillmentStepCompleted))
}

func TestAdvanceStepConcurrentCallsHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sale, record := h.seedRecord(t, sqlitetest.SaleOptions{})

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.AdvanceStep(ctx, advance(2, enums.StepOutcomeCompleted, "called buyer", sale, record.ID))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrStepAlreadyCompleted)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, int64(1), eventCount(t, h.conn, enums.EventFulfillmentStepCompleted))
}

func TestGetDerivesLegacyCommission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sale, record := h.seedRecord(t, sqlitetest.SaleOptions{})

	require.NoError(t, h.conn.Model(&models.FulfillmentRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]any{"commission_percent": nil, "commission_amount": nil, "buyer_price": nil, "order_amount": nil}).Error)

	got, err := h.svc.Get(ctx, admin(sale), record.ID)
	require.NoError(t, err)
	assert.True(t, got.CommissionPercent.Equal(decimal.NewFromInt(10)))
	assert.True(t, got.CommissionAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, got.BuyerPrice.Equal(decimal.NewFromInt(1100)))
	assert.True(t, got.OrderAmount.Equal(decimal.NewFromInt(1100)))
	assert.Equal(t, "Road bike", got.Listing.Title)
	require.Len(t, got.Steps, enums.FulfillmentStepCount)

	_, err = h.svc.Get(ctx, admin(sale), uuid.New())
	require.ErrorIs(t, err, ErrRecordNotFound)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestListFiltersAndCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sale, first := h.seedRecord(t, sqlitetest.SaleOptions{})
	_, second := h.seedRecord(t, sqlitetest.SaleOptions{})
	_, third := h.seedRecord(t, sqlitetest.SaleOptions{})

	_, err := h.svc.AdvanceStep(ctx, advance(2, enums.StepOutcomeCompleted, "sold", sale, first.ID))
	require.NoError(t, err)
	_, err = h.svc.AdvanceStep(ctx, advance(2, enums.StepOutcomeFailed, "cancelled", sale, second.ID))
	require.NoError(t, err)

	all, err := h.svc.List(ctx, admin(sale), ListFilters{}, pagination.PageParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, int64(2), all.Counts.ByStatus[enums.FulfillmentStatusInProgress])
	assert.Equal(t, int64(1), all.Counts.ByStatus[enums.FulfillmentStatusFailed])
	assert.Equal(t, int64(0), all.Counts.ByStatus[enums.FulfillmentStatusCompleted])
	assert.Equal(t, int64(1), all.Counts.ByStep["2"])
	assert.Equal(t, int64(1), all.Counts.ByStep["3"])
	assert.Len(t, all.Counts.ByStep, enums.FulfillmentStepCount)

	step := enums.StepItemMarkedSold
	atTwo, err := h.svc.List(ctx, admin(sale), ListFilters{Step: &step}, pagination.PageParams{})
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, r := range atTwo.Records {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{second.ID, third.ID}, ids)

	adminID := sale.Admin.ID
	byAdmin, err := h.svc.List(ctx, admin(sale), ListFilters{AdminID: &adminID}, pagination.PageParams{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), byAdmin.Total)
	assert.Len(t, byAdmin.Records, 1)

	bad := enums.FulfillmentStep(9)
	_, err = h.svc.List(ctx, admin(sale), ListFilters{Step: &bad}, pagination.PageParams{})
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestGetPayoutBeforeRelease(t *testing.T) {
	h := newHarness(t)
	sale, record := h.seedRecord(t, sqlitetest.SaleOptions{})

	_, err := h.svc.GetPayout(context.Background(), admin(sale), record.ID)
	require.ErrorIs(t, err, payout.ErrLedgerEntryNotFound)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
