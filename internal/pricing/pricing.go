// Package pricing computes order totals from a cart. The computation is a
// pure function of its inputs so the same cart always prices the same way,
// no matter how often it is re-run.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/martxmartindia/checkout/internal/domain"
)

var (
	// GST flat rate applied on the discounted subtotal.
	taxRate = decimal.NewFromFloat(0.18)

	// Orders above this subtotal ship free; everything else pays the flat fee.
	freeShippingThreshold = decimal.NewFromInt(500)
	flatShippingFee       = decimal.NewFromInt(50)
)

// Compute derives OrderTotals from the cart items and the optional applied
// coupon:
//
//	subtotal = sum(unit price * quantity)
//	discount = coupon.ComputedAmount, or 0
//	tax      = 0.18 * (subtotal - discount)
//	shipping = 0 if subtotal > 500, else 50
//	total    = subtotal - discount + tax + shipping
//
// The discount is taken as-is: a discount larger than the subtotal produces a
// negative taxable base and a negative tax. The flat shipping fee applies to
// an empty cart too.
func Compute(items []domain.CartItem, coupon *domain.AppliedCoupon) domain.OrderTotals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal())
	}

	discount := decimal.Zero
	if coupon != nil {
		discount = coupon.ComputedAmount
	}

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxRate)

	shipping := flatShippingFee
	if subtotal.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}

	return domain.OrderTotals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Sub(discount).Add(tax).Add(shipping),
	}
}
