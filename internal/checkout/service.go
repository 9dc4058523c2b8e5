// Package checkout drives the three-step purchase flow: address selection,
// payment, success. It owns the session state machine and coordinates cart,
// addresses, orders and the payment gateway.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/martxmartindia/checkout/internal/domain"
	"github.com/martxmartindia/checkout/internal/gateway"
	"github.com/martxmartindia/checkout/internal/order"
)

// Carts is the slice of the cart service the orchestrator needs.
type Carts interface {
	Totals(ctx context.Context, userID string) (*domain.Cart, domain.OrderTotals, error)
	ClearCart(ctx context.Context, userID string) error
}

type Addresses interface {
	GetByID(ctx context.Context, userID string, id int64) (*domain.Address, error)
}

type Orders interface {
	CreateOrder(ctx context.Context, order *domain.Order, outboxPayload []byte) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	SetGatewayOrder(ctx context.Context, id uuid.UUID, gatewayOrderID string) error
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID string, outboxPayload []byte) error
}

type Service struct {
	sessions  SessionRepository
	carts     Carts
	addresses Addresses
	orders    Orders
	gateway   gateway.Client
	currency  string
}

func NewService(sessions SessionRepository, carts Carts, addresses Addresses, orders Orders, gw gateway.Client, currency string) *Service {
	return &Service{
		sessions:  sessions,
		carts:     carts,
		addresses: addresses,
		orders:    orders,
		gateway:   gw,
		currency:  currency,
	}
}

// SubmitResult is what the payment step hands back: the persisted order and,
// for gateway payments, the options to open the hosted widget with.
type SubmitResult struct {
	Order  *domain.Order          `json:"order"`
	Totals domain.OrderTotals     `json:"totals"`
	Widget *gateway.WidgetOptions `json:"widget,omitempty"`
}

// Begin opens a checkout session at the address step. When the client resends
// the same idempotency key the existing session is returned instead of a new
// one.
func (s *Service) Begin(ctx context.Context, userID, idempotencyKey string) (*domain.CheckoutSession, error) {
	if idempotencyKey != "" {
		existing, err := s.sessions.GetSessionByIdempotencyKey(ctx, idempotencyKey)
		if err == nil {
			if existing.UserID != userID {
				return nil, ErrSessionForbidden
			}
			return existing, nil
		}
		if !errors.Is(err, ErrIdempotencyKeyNotFound) {
			return nil, err
		}
	}

	cart, _, err := s.carts.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	session := &domain.CheckoutSession{
		ID:                    uuid.New(),
		UserID:                userID,
		Step:                  domain.CheckoutStepAddress,
		BillingSameAsShipping: true,
		IdempotencyKey:        idempotencyKey,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.CheckoutSession, error) {
	return s.loadSession(ctx, userID, sessionID)
}

// SelectAddresses records the shipping (and optionally billing) address on an
// address-step session. Both addresses must belong to the session's user.
func (s *Service) SelectAddresses(ctx context.Context, userID string, sessionID uuid.UUID, shippingID int64, billingID *int64, billingSameAsShipping bool) (*domain.CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Step.IsTerminal() {
		return nil, domain.ErrCheckoutFinished
	}

	if _, err := s.addresses.GetByID(ctx, userID, shippingID); err != nil {
		return nil, err
	}
	if !billingSameAsShipping {
		if billingID == nil {
			return nil, domain.ErrNoBillingAddress
		}
		if _, err := s.addresses.GetByID(ctx, userID, *billingID); err != nil {
			return nil, err
		}
	}

	session.ShippingAddressID = &shippingID
	session.BillingSameAsShipping = billingSameAsShipping
	if billingSameAsShipping {
		session.BillingAddressID = nil
	} else {
		session.BillingAddressID = billingID
	}

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ContinueToPayment advances the session to the payment step. The domain
// guard refuses the move without a complete address selection.
func (s *Service) ContinueToPayment(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.ContinueToPayment(); err != nil {
		return nil, err
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// BackToAddress returns a payment-step session to the address step.
func (s *Service) BackToAddress(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.BackToAddress(); err != nil {
		return nil, err
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// DismissWidget records that the user closed the payment widget without
// paying. The session and cart are untouched; the user can reopen the widget
// or go back to addresses.
func (s *Service) DismissWidget(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	log.Printf("checkout %s: payment widget dismissed by user %s", session.ID, userID)
	return session, nil
}

// SubmitPayment snapshots the cart, recomputes totals server-side and creates
// the order. For gateway payments a gateway-side order is registered and
// widget options are returned; the session stays on the payment step until
// verification. COD orders complete the session immediately.
func (s *Service) SubmitPayment(ctx context.Context, userID string, sessionID uuid.UUID, method domain.PaymentMethod, notes string) (*SubmitResult, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Step.IsTerminal() {
		return nil, domain.ErrCheckoutFinished
	}
	if session.Step != domain.CheckoutStepPayment {
		return nil, domain.ErrIllegalTransition
	}
	if !method.Valid() {
		return nil, ErrBadPaymentMethod
	}

	// Repeated submit on the same session reuses the pending order instead of
	// creating a second one.
	if session.OrderID != nil {
		return s.resumePending(ctx, session)
	}

	cart, totals, err := s.carts.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	if session.ShippingAddressID == nil {
		return nil, domain.ErrNoShippingAddress
	}
	shipping, err := s.addresses.GetByID(ctx, userID, *session.ShippingAddressID)
	if err != nil {
		return nil, err
	}
	billingID := *session.ShippingAddressID
	if !session.BillingSameAsShipping {
		if session.BillingAddressID == nil {
			return nil, domain.ErrNoBillingAddress
		}
		billingID = *session.BillingAddressID
	}

	snapshot, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("snapshot cart: %w", err)
	}

	ord := &domain.Order{
		ID:                uuid.New(),
		CheckoutID:        session.ID,
		OrderNumber:       newOrderNumber(),
		UserID:            userID,
		Amount:            totals.Total,
		Currency:          s.currency,
		PaymentMethod:     method,
		ShippingAddressID: *session.ShippingAddressID,
		BillingAddressID:  billingID,
		ShippingSnapshot:  snapshotAddress(shipping),
		Notes:             notes,
		Items:             orderItems(cart.Items),
	}

	if method == domain.PaymentMethodCashOnDelivery {
		return s.submitCashOnDelivery(ctx, session, ord, totals, snapshot)
	}
	return s.submitGateway(ctx, session, ord, totals, snapshot, shipping)
}

func (s *Service) submitCashOnDelivery(ctx context.Context, session *domain.CheckoutSession, ord *domain.Order, totals domain.OrderTotals, snapshot []byte) (*SubmitResult, error) {
	ord.Status = domain.OrderStatusPlaced
	payload, err := completedEventPayload(ord)
	if err != nil {
		return nil, err
	}
	if err := s.orders.CreateOrder(ctx, ord, payload); err != nil {
		return nil, err
	}

	session.OrderID = &ord.ID
	session.CartSnapshot = snapshot
	if err := session.Complete(); err != nil {
		return nil, err
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	if err := s.carts.ClearCart(ctx, session.UserID); err != nil {
		log.Printf("checkout %s: failed to clear cart after COD order: %v", session.ID, err)
	}
	return &SubmitResult{Order: ord, Totals: totals}, nil
}

func (s *Service) submitGateway(ctx context.Context, session *domain.CheckoutSession, ord *domain.Order, totals domain.OrderTotals, snapshot []byte, shipping *domain.Address) (*SubmitResult, error) {
	ord.Status = domain.OrderStatusPendingPayment

	// The order row is committed before the gateway is contacted: if the
	// insert fails no gateway-side order exists, and if the gateway call
	// fails the pending order is reused on the next submit.
	if err := s.orders.CreateOrder(ctx, ord, nil); err != nil {
		return nil, err
	}

	session.OrderID = &ord.ID
	session.CartSnapshot = snapshot
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	gatewayOrderID, err := s.gateway.CreateOrder(ctx, minorUnits(totals.Total), s.currency, ord.OrderNumber)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetGatewayOrder(ctx, ord.ID, gatewayOrderID); err != nil {
		return nil, err
	}
	ord.GatewayOrderID = gatewayOrderID

	session.GatewayOrderID = gatewayOrderID
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	return &SubmitResult{
		Order:  ord,
		Totals: totals,
		Widget: s.widgetOptions(ord, shipping),
	}, nil
}

// resumePending rebuilds the submit result for a session that already has a
// pending order, retrying the gateway registration if it never happened.
func (s *Service) resumePending(ctx context.Context, session *domain.CheckoutSession) (*SubmitResult, error) {
	ord, err := s.orders.GetOrderByID(ctx, *session.OrderID)
	if err != nil {
		return nil, err
	}

	if ord.PaymentMethod == domain.PaymentMethodGateway && ord.GatewayOrderID == "" {
		gatewayOrderID, err := s.gateway.CreateOrder(ctx, minorUnits(ord.Amount), ord.Currency, ord.OrderNumber)
		if err != nil {
			return nil, err
		}
		if err := s.orders.SetGatewayOrder(ctx, ord.ID, gatewayOrderID); err != nil {
			return nil, err
		}
		ord.GatewayOrderID = gatewayOrderID
		session.GatewayOrderID = gatewayOrderID
		if err := s.sessions.SaveSession(ctx, session); err != nil {
			return nil, err
		}
	}

	result := &SubmitResult{Order: ord}
	if ord.PaymentMethod == domain.PaymentMethodGateway {
		shipping, err := s.addresses.GetByID(ctx, session.UserID, ord.ShippingAddressID)
		if err != nil {
			return nil, err
		}
		result.Widget = s.widgetOptions(ord, shipping)
	}
	return result, nil
}

// VerifyPayment checks the widget callback signature and, only on an exact
// match, marks the order paid and completes the session. A failed check
// leaves the session on the payment step and the cart intact.
func (s *Service) VerifyPayment(ctx context.Context, userID string, sessionID, orderID uuid.UUID, paymentID, signature string) (*domain.Order, error) {
	session, err := s.loadSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OrderID == nil {
		return nil, domain.ErrOrderNotYetCreated
	}
	if *session.OrderID != orderID {
		return nil, ErrOrderMismatch
	}

	// Duplicate callback for an already completed checkout: report the order
	// as-is instead of failing.
	if session.Step.IsTerminal() {
		return s.orders.GetOrderByID(ctx, *session.OrderID)
	}
	if session.Step != domain.CheckoutStepPayment {
		return nil, domain.ErrIllegalTransition
	}

	if !s.gateway.VerifySignature(session.GatewayOrderID, paymentID, signature) {
		return nil, ErrVerificationFailed
	}

	ord, err := s.orders.GetOrderByID(ctx, *session.OrderID)
	if err != nil {
		return nil, err
	}
	ord.Status = domain.OrderStatusPaid
	ord.GatewayPaymentID = paymentID

	payload, err := completedEventPayload(ord)
	if err != nil {
		return nil, err
	}
	if err := s.orders.MarkPaid(ctx, ord.ID, paymentID, payload); err != nil {
		return nil, err
	}

	if err := session.Complete(); err != nil {
		return nil, err
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	if err := s.carts.ClearCart(ctx, userID); err != nil {
		log.Printf("checkout %s: failed to clear cart after payment: %v", session.ID, err)
	}
	return ord, nil
}

func (s *Service) loadSession(ctx context.Context, userID string, sessionID uuid.UUID) (*domain.CheckoutSession, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrSessionForbidden
	}
	return session, nil
}

func (s *Service) widgetOptions(ord *domain.Order, shipping *domain.Address) *gateway.WidgetOptions {
	return &gateway.WidgetOptions{
		Key:            s.gateway.KeyID(),
		Amount:         minorUnits(ord.Amount),
		Currency:       ord.Currency,
		OrderReference: ord.GatewayOrderID,
		Prefill: gateway.Prefill{
			Name:  shipping.ContactName,
			Email: shipping.Email,
			Phone: shipping.Phone,
		},
	}
}

func completedEventPayload(ord *domain.Order) ([]byte, error) {
	payload, err := json.Marshal(order.OrderCompletedEvent{
		OrderID:       ord.ID.String(),
		OrderNumber:   ord.OrderNumber,
		UserID:        ord.UserID,
		Amount:        ord.Amount.String(),
		Currency:      ord.Currency,
		PaymentMethod: string(ord.PaymentMethod),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order event: %w", err)
	}
	return payload, nil
}

func orderItems(items []domain.CartItem) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.DisplayName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal(),
		})
	}
	return out
}

func snapshotAddress(a *domain.Address) *domain.AddressSnapshot {
	return &domain.AddressSnapshot{
		ContactName:  a.ContactName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		Zip:          a.Zip,
	}
}

// minorUnits converts a rupee amount to paise for the gateway.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func newOrderNumber() string {
	ref := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("MM-%s-%s", time.Now().Format("20060102"), ref)
}
