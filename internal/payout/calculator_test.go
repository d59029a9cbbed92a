package payout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func TestComputeReferenceExample(t *testing.T) {
	got, err := Compute(dec("1000"), dec("10"), decPtr("1100"))
	require.NoError(t, err)

	assert.True(t, got.CommissionAmount.Equal(dec("100")), got.CommissionAmount.String())
	assert.True(t, got.BuyerPrice.Equal(dec("1100")), got.BuyerPrice.String())
	assert.True(t, got.SellerNet.Equal(dec("1000")), got.SellerNet.String())
	assert.True(t, got.SellerNet.Add(got.CommissionAmount).Equal(got.OrderAmount))
}

func TestComputeFallsBackToBuyerPrice(t *testing.T) {
	got, err := Compute(dec("250"), dec("12"), nil)
	require.NoError(t, err)

	assert.True(t, got.OrderAmount.Equal(dec("280")))
	assert.True(t, got.SellerNet.Equal(dec("250")))
}

func TestComputeRoundsHalfToEven(t *testing.T) {
	cases := []struct {
		name       string
		price      string
		percent    string
		commission string
	}{
		{name: "half rounds down to even", price: "0.25", percent: "10", commission: "0.02"},
		{name: "half rounds up to even", price: "0.35", percent: "10", commission: "0.04"},
		{name: "fractional percent", price: "199.99", percent: "7.5", commission: "15.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(dec(tc.price), dec(tc.percent), nil)
			require.NoError(t, err)
			assert.Equal(t, tc.commission, got.CommissionAmount.StringFixed(2))
			assert.True(t, got.SellerNet.Add(got.CommissionAmount).Equal(got.OrderAmount))
		})
	}
}

func TestComputeUnderchargedOrder(t *testing.T) {
	got, err := Compute(dec("1000"), dec("10"), decPtr("1050"))
	require.NoError(t, err)
	assert.True(t, got.SellerNet.Equal(dec("950")))
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	_, err := Compute(dec("-1"), dec("10"), nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Compute(dec("10"), dec("101"), nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Compute(dec("10"), dec("10"), decPtr("-5"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCalculatorResolvePercentOrder(t *testing.T) {
	calc, err := NewCalculator(dec("10"))
	require.NoError(t, err)

	assert.True(t, calc.ResolvePercent(decPtr("5"), decPtr("8")).Equal(dec("5")))
	assert.True(t, calc.ResolvePercent(nil, decPtr("8")).Equal(dec("8")))
	assert.True(t, calc.ResolvePercent(nil, nil).Equal(dec("10")))
	assert.True(t, calc.ResolvePercent(nil, decPtr("0")).Equal(dec("0")))

	got, err := calc.Compute(dec("1000"), nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, got.CommissionAmount.Equal(dec("100")))
}

func TestNewCalculatorValidatesDefault(t *testing.T) {
	_, err := NewCalculator(dec("-1"))
	require.Error(t, err)
}
