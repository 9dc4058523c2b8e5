// Package coupon applies and removes cart discounts. Validation is delegated
// to the coupon store; the cart is only touched once a code has passed.
package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/martxmartindia/checkout/internal/domain"
	"github.com/martxmartindia/checkout/internal/pricing"
)

var (
	ErrEmptyCode      = errors.New("coupon code is empty")
	ErrCouponExpired  = errors.New("coupon is expired or not yet valid")
	ErrCouponInactive = errors.New("coupon is not active")
	ErrMinOrderValue  = errors.New("cart subtotal below coupon minimum")
)

// Carts is the slice of the cart service the coupon flow needs.
type Carts interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AttachCoupon(ctx context.Context, userID string, coupon *domain.AppliedCoupon) error
	RemoveCoupon(ctx context.Context, userID string) error
}

type Service struct {
	store Store
	carts Carts
	now   func() time.Time
}

func NewService(store Store, carts Carts) *Service {
	return &Service{
		store: store,
		carts: carts,
		now:   time.Now,
	}
}

// Apply validates the code against the store and attaches the computed
// discount to the user's cart, replacing any previously applied coupon.
// On any failure the cart is left untouched.
func (s *Service) Apply(ctx context.Context, userID, code string) (*domain.AppliedCoupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrEmptyCode
	}

	c, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, ErrCouponInactive
	}
	now := s.now()
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return nil, ErrCouponExpired
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	subtotal := pricing.Compute(cart.Items, nil).Subtotal
	if subtotal.LessThan(c.MinOrderValue) {
		return nil, ErrMinOrderValue
	}

	applied := &domain.AppliedCoupon{
		Code:           c.Code,
		DiscountType:   c.DiscountType,
		DiscountValue:  c.DiscountValue,
		ComputedAmount: c.DiscountFor(subtotal),
	}

	if err := s.carts.AttachCoupon(ctx, userID, applied); err != nil {
		return nil, err
	}
	return applied, nil
}

// Remove detaches the active coupon, if any.
func (s *Service) Remove(ctx context.Context, userID string) error {
	return s.carts.RemoveCoupon(ctx, userID)
}
