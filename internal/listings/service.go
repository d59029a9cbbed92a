package listings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
)

var (
	ErrListingNotFound    = errors.New("listing not found")
	ErrListingSoldToOther = errors.New("listing already sold to another buyer")
)

// PriceAndCommission is the commercial snapshot of a listing.
type PriceAndCommission struct {
	Price             decimal.Decimal
	CommissionPercent *decimal.Decimal
}

// Service is the listing collaborator used by the payment gate and the
// fulfillment workflow. Mutations run on the caller's transaction.
type Service interface {
	Get(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
	GetPriceAndCommission(ctx context.Context, listingID uuid.UUID) (PriceAndCommission, error)
	SetSold(ctx context.Context, tx *gorm.DB, listingID, buyerID uuid.UUID) error
	MarkUnavailable(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires the listing collaborator.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Get(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	return s.load(ctx, s.repo, listingID)
}

func (s *service) GetPriceAndCommission(ctx context.Context, listingID uuid.UUID) (PriceAndCommission, error) {
	listing, err := s.load(ctx, s.repo, listingID)
	if err != nil {
		return PriceAndCommission{}, err
	}
	return PriceAndCommission{
		Price:             listing.Price,
		CommissionPercent: listing.CommissionPercent,
	}, nil
}

// SetSold records the sale. Repeating it for the same buyer is a no-op.
func (s *service) SetSold(ctx context.Context, tx *gorm.DB, listingID, buyerID uuid.UUID) error {
	if listingID == uuid.Nil || buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id and buyer id required")
	}
	repo := s.repo.WithTx(tx)
	rows, err := repo.MarkSold(ctx, listingID, buyerID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark listing sold")
	}
	if rows > 0 {
		return nil
	}

	listing, err := s.load(ctx, repo, listingID)
	if err != nil {
		return err
	}
	if listing.SoldTo != nil && *listing.SoldTo == buyerID {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrListingSoldToOther, "listing already sold")
}

// MarkUnavailable hides an active listing once its payment is verified.
func (s *service) MarkUnavailable(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) error {
	if listingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	repo := s.repo.WithTx(tx)
	rows, err := repo.MarkUnavailable(ctx, listingID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark listing unavailable")
	}
	if rows > 0 {
		return nil
	}
	_, err = s.load(ctx, repo, listingID)
	return err
}

func (s *service) load(ctx context.Context, repo Repository, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := repo.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrListingNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
}
