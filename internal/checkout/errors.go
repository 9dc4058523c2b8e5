package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrSessionForbidden   = errors.New("checkout session belongs to another user")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrOrderMismatch      = errors.New("order does not belong to this checkout")
	ErrBadPaymentMethod   = errors.New("unsupported payment method")
)
