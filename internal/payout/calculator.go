package payout

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradepost-backend/pkg/money"
)

var ErrInvalidAmount = errors.New("invalid payout amount")

// Breakdown is the full commission split for one sale. Every amount is rounded
// with money.Round.
type Breakdown struct {
	ListingPrice      decimal.Decimal `json:"listing_price"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
	BuyerPrice        decimal.Decimal `json:"buyer_price"`
	OrderAmount       decimal.Decimal `json:"order_amount"`
	SellerNet         decimal.Decimal `json:"seller_net"`
}

// Compute splits a sale. orderAmount is what the buyer was actually charged;
// when nil the buyer price is assumed.
func Compute(listingPrice, commissionPercent decimal.Decimal, orderAmount *decimal.Decimal) (Breakdown, error) {
	if err := money.ValidateAmount(listingPrice); err != nil {
		return Breakdown{}, fmt.Errorf("%w: listing price: %v", ErrInvalidAmount, err)
	}
	if err := money.ValidatePercent(commissionPercent); err != nil {
		return Breakdown{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	price := money.Round(listingPrice)
	commission := money.PercentOf(price, commissionPercent)
	buyerPrice := money.Round(price.Add(commission))

	charged := buyerPrice
	if orderAmount != nil {
		if err := money.ValidateAmount(*orderAmount); err != nil {
			return Breakdown{}, fmt.Errorf("%w: order amount: %v", ErrInvalidAmount, err)
		}
		charged = money.Round(*orderAmount)
	}

	return Breakdown{
		ListingPrice:      price,
		CommissionPercent: commissionPercent,
		CommissionAmount:  commission,
		BuyerPrice:        buyerPrice,
		OrderAmount:       charged,
		SellerNet:         money.Round(charged.Sub(commission)),
	}, nil
}

// Calculator carries the platform default commission resolved at wiring time.
type Calculator struct {
	defaultPercent decimal.Decimal
}

// NewCalculator validates and stores the platform default commission percent.
func NewCalculator(defaultPercent decimal.Decimal) (*Calculator, error) {
	if err := money.ValidatePercent(defaultPercent); err != nil {
		return nil, fmt.Errorf("default commission: %w", err)
	}
	return &Calculator{defaultPercent: defaultPercent}, nil
}

// ResolvePercent returns the first non-nil candidate, falling back to the
// platform default. Callers pass candidates in priority order.
func (c *Calculator) ResolvePercent(candidates ...*decimal.Decimal) decimal.Decimal {
	for _, candidate := range candidates {
		if candidate != nil {
			return *candidate
		}
	}
	return c.defaultPercent
}

// Compute runs the split with a percent resolved from candidates.
func (c *Calculator) Compute(listingPrice decimal.Decimal, orderAmount *decimal.Decimal, candidates ...*decimal.Decimal) (Breakdown, error) {
	return Compute(listingPrice, c.ResolvePercent(candidates...), orderAmount)
}
