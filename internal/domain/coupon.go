package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercent DiscountType = "PERCENT"
	DiscountTypeFlat    DiscountType = "FLAT"
)

type Coupon struct {
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	MinOrderValue decimal.Decimal `json:"min_order_value"`
	ValidFrom     time.Time       `json:"valid_from"`
	ValidTo       time.Time       `json:"valid_to"`
	Active        bool            `json:"active"`
}

// DiscountFor computes the discount this coupon yields for the given
// subtotal. Percent coupons are taken off the subtotal; flat coupons apply
// as-is, without clamping to the subtotal.
func (c *Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	if c.DiscountType == DiscountTypePercent {
		return subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	}
	return c.DiscountValue
}
