package listings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
)

func seedListing(t *testing.T, conn *gorm.DB, commission *decimal.Decimal) *models.Listing {
	t.Helper()
	now := time.Now().UTC()
	listing := &models.Listing{
		ID:                uuid.New(),
		SellerID:          uuid.New(),
		Title:             "Vintage bike",
		Price:             decimal.RequireFromString("1000"),
		CommissionPercent: commission,
		Status:            enums.ListingStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, NewRepository(conn).Create(context.Background(), listing))
	return listing
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return svc
}

func TestGetPriceAndCommission(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := newTestService(t, conn)

	pct := decimal.RequireFromString("7.5")
	listing := seedListing(t, conn, &pct)

	got, err := svc.GetPriceAndCommission(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, got.CommissionPercent)
	assert.True(t, got.CommissionPercent.Equal(pct))

	_, err = svc.GetPriceAndCommission(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrListingNotFound)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestSetSoldIsIdempotentForSameBuyer(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := newTestService(t, conn)
	listing := seedListing(t, conn, nil)
	buyer := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.SetSold(ctx, conn, listing.ID, buyer))
	require.NoError(t, svc.SetSold(ctx, conn, listing.ID, buyer))

	stored, err := svc.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStatusSold, stored.Status)
	require.NotNil(t, stored.SoldTo)
	assert.Equal(t, buyer, *stored.SoldTo)
	assert.NotNil(t, stored.SoldAt)

	err = svc.SetSold(ctx, conn, listing.ID, uuid.New())
	require.ErrorIs(t, err, ErrListingSoldToOther)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestSetSoldUnknownListing(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := newTestService(t, conn)

	err := svc.SetSold(context.Background(), conn, uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrListingNotFound)
}

func TestMarkUnavailableLeavesSoldListingAlone(t *testing.T) {
	conn := sqlitetest.Open(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	active := seedListing(t, conn, nil)
	require.NoError(t, svc.MarkUnavailable(ctx, conn, active.ID))
	stored, err := svc.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStatusUnavailable, stored.Status)

	sold := seedListing(t, conn, nil)
	require.NoError(t, svc.SetSold(ctx, conn, sold.ID, uuid.New()))
	require.NoError(t, svc.MarkUnavailable(ctx, conn, sold.ID))
	stored, err = svc.Get(ctx, sold.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ListingStatusSold, stored.Status)

	err = svc.MarkUnavailable(ctx, conn, uuid.New())
	require.True(t, errors.Is(err, ErrListingNotFound))
}
