package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type CheckoutStep string

const (
	CheckoutStepAddress CheckoutStep = "ADDRESS"
	CheckoutStepPayment CheckoutStep = "PAYMENT"
	CheckoutStepSuccess CheckoutStep = "SUCCESS"
)

func (s CheckoutStep) IsTerminal() bool {
	return s == CheckoutStepSuccess
}

// String representation (for logging)
func (s CheckoutStep) String() string {
	return string(s)
}

// CanTransitionTo encodes the legal step graph: address -> payment -> success,
// with payment -> address as the only backward edge.
func CanTransitionTo(from, to CheckoutStep) bool {
	switch from {
	case CheckoutStepAddress:
		return to == CheckoutStepPayment
	case CheckoutStepPayment:
		return to == CheckoutStepAddress || to == CheckoutStepSuccess
	default:
		return false
	}
}

var (
	ErrIllegalTransition  = errors.New("illegal checkout step transition")
	ErrNoShippingAddress  = errors.New("shipping address not selected")
	ErrNoBillingAddress   = errors.New("billing address not selected")
	ErrCheckoutFinished   = errors.New("checkout already finished")
	ErrOrderNotYetCreated = errors.New("no order created for this checkout")
)

type CheckoutSession struct {
	ID                     uuid.UUID    `json:"id"`
	UserID                 string       `json:"user_id"`
	Step                   CheckoutStep `json:"step"`
	ShippingAddressID      *int64       `json:"shipping_address_id,omitempty"`
	BillingAddressID       *int64       `json:"billing_address_id,omitempty"`
	BillingSameAsShipping  bool         `json:"billing_same_as_shipping"`
	OrderID                *uuid.UUID   `json:"order_id,omitempty"`
	GatewayOrderID         string       `json:"gateway_order_id,omitempty"`
	IdempotencyKey         string       `json:"idempotency_key"`
	CartSnapshot           []byte       `json:"-"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// ContinueToPayment moves the session from the address step to the payment
// step. The move is refused unless a shipping address is selected and, when
// billing differs from shipping, a billing address too.
func (s *CheckoutSession) ContinueToPayment() error {
	if !CanTransitionTo(s.Step, CheckoutStepPayment) {
		return ErrIllegalTransition
	}
	if s.ShippingAddressID == nil {
		return ErrNoShippingAddress
	}
	if !s.BillingSameAsShipping && s.BillingAddressID == nil {
		return ErrNoBillingAddress
	}
	s.Step = CheckoutStepPayment
	return nil
}

// BackToAddress is the explicit user-triggered backward transition.
func (s *CheckoutSession) BackToAddress() error {
	if !CanTransitionTo(s.Step, CheckoutStepAddress) {
		return ErrIllegalTransition
	}
	s.Step = CheckoutStepAddress
	return nil
}

// Complete moves the session to its terminal step. There is no way back.
func (s *CheckoutSession) Complete() error {
	if !CanTransitionTo(s.Step, CheckoutStepSuccess) {
		return ErrIllegalTransition
	}
	s.Step = CheckoutStepSuccess
	return nil
}
