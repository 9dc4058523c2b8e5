package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/martxmartindia/checkout/internal/checkout"
	"github.com/martxmartindia/checkout/internal/domain"
)

type CheckoutService interface {
	Begin(ctx context.Context, userID, idempotencyKey string) (*domain.CheckoutSession, error)
	GetSession(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.CheckoutSession, error)
	SelectAddresses(ctx context.Context, userID string, sessionID uuid.UUID, shippingID int64, billingID *int64, billingSameAsShipping bool) (*domain.CheckoutSession, error)
	ContinueToPayment(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.CheckoutSession, error)
	BackToAddress(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.CheckoutSession, error)
	DismissWidget(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.CheckoutSession, error)
	SubmitPayment(ctx context.Context, userID string, sessionID uuid.UUID, method domain.PaymentMethod, notes string) (*checkout.SubmitResult, error)
	VerifyPayment(ctx context.Context, userID string, sessionID, orderID uuid.UUID, paymentID, signature string) (*domain.Order, error)
}

type CheckoutHandler struct {
	service CheckoutService
	timeout time.Duration
}

func NewCheckoutHandler(service CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		timeout: timeout,
	}
}

type BeginCheckoutRequestDTO struct {
	IdempotencyKey string `json:"idempotency_key"`
}

type SelectAddressesRequestDTO struct {
	ShippingAddressID     int64  `json:"shipping_address_id"`
	BillingAddressID      *int64 `json:"billing_address_id,omitempty"`
	BillingSameAsShipping bool   `json:"billing_same_as_shipping"`
}

type SubmitPaymentRequestDTO struct {
	SessionID     string `json:"session_id"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

type VerifyPaymentRequestDTO struct {
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// POST /api/v1/checkout/session
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req BeginCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	session, err := h.service.Begin(ctx, userID, req.IdempotencyKey)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// GET /api/v1/checkout/session/{session_id}
func (h *CheckoutHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, err := h.service.GetSession(ctx, userID, sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// PUT /api/v1/checkout/session/{session_id}/addresses
func (h *CheckoutHandler) SelectAddresses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req SelectAddressesRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ShippingAddressID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "shipping_address_id must be positive")
		return
	}

	session, err := h.service.SelectAddresses(ctx, userID, sessionID,
		req.ShippingAddressID, req.BillingAddressID, req.BillingSameAsShipping)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// POST /api/v1/checkout/session/{session_id}/continue
func (h *CheckoutHandler) Continue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ContinueToPayment)
}

// POST /api/v1/checkout/session/{session_id}/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.BackToAddress)
}

// POST /api/v1/checkout/session/{session_id}/dismiss
func (h *CheckoutHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.DismissWidget)
}

func (h *CheckoutHandler) transition(w http.ResponseWriter, r *http.Request,
	move func(context.Context, string, uuid.UUID) (*domain.CheckoutSession, error)) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	session, err := move(ctx, userID, sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req SubmitPaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a UUID")
		return
	}

	method := domain.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", "payment_method must be GATEWAY or COD")
		return
	}

	result, err := h.service.SubmitPayment(ctx, userID, sessionID, method, req.Notes)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// POST /api/v1/payment/verify
func (h *CheckoutHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req VerifyPaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a UUID")
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}
	if req.PaymentID == "" || req.Signature == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "payment_id and signature are required")
		return
	}

	order, err := h.service.VerifyPayment(ctx, userID, sessionID, orderID, req.PaymentID, req.Signature)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *CheckoutHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
