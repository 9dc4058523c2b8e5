package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martxmartindia/checkout/internal/domain"
)

func item(price string, qty int) domain.CartItem {
	return domain.CartItem{
		ProductID: int64(qty), // not relevant for pricing
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func coupon(amount string) *domain.AppliedCoupon {
	return &domain.AppliedCoupon{
		Code:           "TEST",
		DiscountType:   domain.DiscountTypeFlat,
		DiscountValue:  decimal.RequireFromString(amount),
		ComputedAmount: decimal.RequireFromString(amount),
	}
}

func TestCompute_SubtotalIsSumOfLineSubtotals(t *testing.T) {
	items := []domain.CartItem{item("99.50", 2), item("10", 3), item("0.99", 1)}

	got := Compute(items, nil)

	want := decimal.RequireFromString("229.99")
	assert.True(t, got.Subtotal.Equal(want), "subtotal = %s, want %s", got.Subtotal, want)
}

func TestCompute_SubtotalCommutative(t *testing.T) {
	a := []domain.CartItem{item("120", 1), item("35.25", 4), item("7", 2)}
	b := []domain.CartItem{a[2], a[0], a[1]}

	assert.True(t, Compute(a, nil).Subtotal.Equal(Compute(b, nil).Subtotal))
}

func TestCompute_ShippingBoundary(t *testing.T) {
	// exactly 500 still pays the flat fee; 500.01 ships free
	atBoundary := Compute([]domain.CartItem{item("500", 1)}, nil)
	assert.True(t, atBoundary.Shipping.Equal(decimal.NewFromInt(50)),
		"shipping at subtotal 500 = %s", atBoundary.Shipping)

	aboveBoundary := Compute([]domain.CartItem{item("500.01", 1)}, nil)
	assert.True(t, aboveBoundary.Shipping.IsZero(),
		"shipping at subtotal 500.01 = %s", aboveBoundary.Shipping)
}

func TestCompute_ShippingIndependentOfDiscount(t *testing.T) {
	// a discount that drags the payable below 500 does not reintroduce the fee
	got := Compute([]domain.CartItem{item("600", 1)}, coupon("550"))
	assert.True(t, got.Shipping.IsZero())
}

func TestCompute_TaxOnDiscountedSubtotal(t *testing.T) {
	got := Compute([]domain.CartItem{item("100", 2)}, coupon("50"))

	// 0.18 * (200 - 50)
	assert.True(t, got.Tax.Equal(decimal.RequireFromString("27")), "tax = %s", got.Tax)
}

func TestCompute_DiscountLargerThanSubtotalYieldsNegativeTax(t *testing.T) {
	got := Compute([]domain.CartItem{item("100", 1)}, coupon("150"))

	// tax is not clamped: 0.18 * (100 - 150) = -9
	assert.True(t, got.Tax.Equal(decimal.RequireFromString("-9")), "tax = %s", got.Tax)
}

func TestCompute_EmptyCartStillPaysShipping(t *testing.T) {
	got := Compute(nil, nil)

	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, got.Discount.IsZero())
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.Shipping.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(50)))
}

func TestCompute_CouponRemovalRestoresBaseline(t *testing.T) {
	items := []domain.CartItem{item("250", 1), item("125.50", 2)}

	baseline := Compute(items, nil)
	withCoupon := Compute(items, coupon("40"))
	afterRemoval := Compute(items, nil)

	require.False(t, withCoupon.Total.Equal(baseline.Total))
	assert.True(t, afterRemoval.Subtotal.Equal(baseline.Subtotal))
	assert.True(t, afterRemoval.Discount.Equal(baseline.Discount))
	assert.True(t, afterRemoval.Tax.Equal(baseline.Tax))
	assert.True(t, afterRemoval.Total.Equal(baseline.Total))
}

func TestCompute_ScenarioSingleExpensiveItem(t *testing.T) {
	// 1000 x1, no coupon: subtotal=1000, tax=180, free shipping, total=1180
	got := Compute([]domain.CartItem{item("1000", 1)}, nil)

	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got.Discount.IsZero())
	assert.True(t, got.Tax.Equal(decimal.NewFromInt(180)), "tax = %s", got.Tax)
	assert.True(t, got.Shipping.IsZero())
	assert.True(t, got.Total.Equal(decimal.NewFromInt(1180)), "total = %s", got.Total)
}

func TestCompute_ScenarioBelowFreeShipping(t *testing.T) {
	// 200 x2, no coupon: subtotal=400, shipping=50, tax=72, total=522
	got := Compute([]domain.CartItem{item("200", 2)}, nil)

	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(400)))
	assert.True(t, got.Shipping.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.Tax.Equal(decimal.NewFromInt(72)), "tax = %s", got.Tax)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(522)), "total = %s", got.Total)
}

func TestCompute_Idempotent(t *testing.T) {
	items := []domain.CartItem{item("42.42", 3)}
	c := coupon("10")

	first := Compute(items, c)
	second := Compute(items, c)

	assert.True(t, first.Total.Equal(second.Total))
	assert.True(t, first.Tax.Equal(second.Tax))
}
