package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID   int64           `json:"product_id"`
	DisplayName string          `json:"display_name"`
	ImageRef    string          `json:"image_ref,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	AddedAt     time.Time       `json:"added_at"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AppliedCoupon is the single discount attached to a cart. Applying a new
// coupon replaces it; there is no stacking.
type AppliedCoupon struct {
	Code           string          `json:"code"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	ComputedAmount decimal.Decimal `json:"computed_amount"`
}

type Cart struct {
	UserID    string         `json:"user_id"`
	Items     []CartItem     `json:"items"`
	Coupon    *AppliedCoupon `json:"coupon,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount is the total number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}
