package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/martxmartindia/checkout/internal/address"
	"github.com/martxmartindia/checkout/internal/cart"
	"github.com/martxmartindia/checkout/internal/checkout"
	"github.com/martxmartindia/checkout/internal/coupon"
	"github.com/martxmartindia/checkout/internal/domain"
	"github.com/martxmartindia/checkout/internal/gateway"
	"github.com/martxmartindia/checkout/internal/order"
)

type ErrorResponse struct {
	Error   string               `json:"error"`
	Code    string               `json:"code,omitempty"`
	Details []address.FieldError `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondFieldErrors(w http.ResponseWriter, errs []address.FieldError) {
	respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "address validation failed",
		Code:    "validation_failed",
		Details: errs,
	})
}

// respondServiceError maps domain and service sentinels to HTTP responses.
// Anything unrecognized is a 500 with a generic body; the cause is logged,
// not leaked.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, address.ErrAddressNotFound),
		errors.Is(err, coupon.ErrCouponNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, checkout.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, checkout.ErrSessionForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())

	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrBadPaymentMethod),
		errors.Is(err, coupon.ErrEmptyCode),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponInactive),
		errors.Is(err, coupon.ErrMinOrderValue):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrNoShippingAddress),
		errors.Is(err, domain.ErrNoBillingAddress),
		errors.Is(err, domain.ErrCheckoutFinished),
		errors.Is(err, domain.ErrOrderNotYetCreated),
		errors.Is(err, checkout.ErrOrderMismatch),
		errors.Is(err, order.ErrDuplicateCheckout):
		respondError(w, http.StatusConflict, "conflict", err.Error())

	case errors.Is(err, checkout.ErrVerificationFailed):
		respondError(w, http.StatusUnprocessableEntity, "verification_failed", err.Error())

	case errors.Is(err, gateway.ErrGatewayOrderFailed):
		respondError(w, http.StatusBadGateway, "gateway_unavailable", err.Error())

	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
