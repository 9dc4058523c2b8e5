package checkout

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/martxmartindia/checkout/internal/address"
	"github.com/martxmartindia/checkout/internal/domain"
	"github.com/martxmartindia/checkout/internal/order"
	"github.com/martxmartindia/checkout/internal/pricing"
)

type mockSessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.CheckoutSession
	byKey    map[string]uuid.UUID
	saveErr  error
	saves    int
}

func newMockSessions() *mockSessions {
	return &mockSessions{
		sessions: make(map[uuid.UUID]*domain.CheckoutSession),
		byKey:    make(map[string]uuid.UUID),
	}
}

func (m *mockSessions) CreateSession(_ context.Context, s *domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	if s.IdempotencyKey != "" {
		m.byKey[s.IdempotencyKey] = s.ID
	}
	return nil
}

// GetSession hands out a copy so that mutations the service makes before a
// failed save do not leak into the stored state, same as a real database.
func (m *mockSessions) GetSession(_ context.Context, id uuid.UUID) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessions) GetSessionByIdempotencyKey(_ context.Context, key string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, ErrIdempotencyKeyNotFound
	}
	cp := *m.sessions[id]
	return &cp, nil
}

func (m *mockSessions) SaveSession(_ context.Context, s *domain.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	cp := *s
	m.sessions[s.ID] = &cp
	m.saves++
	return nil
}

func (m *mockSessions) stored(id uuid.UUID) *domain.CheckoutSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

type mockCarts struct {
	cart       *domain.Cart
	totalsErr  error
	clearErr   error
	clearCalls int
}

func (m *mockCarts) Totals(_ context.Context, userID string) (*domain.Cart, domain.OrderTotals, error) {
	if m.totalsErr != nil {
		return nil, domain.OrderTotals{}, m.totalsErr
	}
	if m.cart == nil {
		return &domain.Cart{UserID: userID}, pricing.Compute(nil, nil), nil
	}
	return m.cart, pricing.Compute(m.cart.Items, m.cart.Coupon), nil
}

func (m *mockCarts) ClearCart(context.Context, string) error {
	m.clearCalls++
	return m.clearErr
}

type mockAddresses struct {
	addrs map[int64]*domain.Address
}

func (m *mockAddresses) GetByID(_ context.Context, userID string, id int64) (*domain.Address, error) {
	a, ok := m.addrs[id]
	if !ok || a.UserID != userID {
		return nil, address.ErrAddressNotFound
	}
	return a, nil
}

type mockOrders struct {
	orders          map[uuid.UUID]*domain.Order
	createErr       error
	markPaidErr     error
	createCalls     int
	markPaidCalls   int
	setGatewayCalls int
	lastPayload     []byte
}

func newMockOrders() *mockOrders {
	return &mockOrders{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *mockOrders) CreateOrder(_ context.Context, o *domain.Order, payload []byte) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	cp := *o
	m.orders[o.ID] = &cp
	m.lastPayload = payload
	return nil
}

func (m *mockOrders) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrders) SetGatewayOrder(_ context.Context, id uuid.UUID, gatewayOrderID string) error {
	m.setGatewayCalls++
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.GatewayOrderID = gatewayOrderID
	return nil
}

func (m *mockOrders) MarkPaid(_ context.Context, id uuid.UUID, paymentID string, payload []byte) error {
	m.markPaidCalls++
	if m.markPaidErr != nil {
		return m.markPaidErr
	}
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = domain.OrderStatusPaid
	o.GatewayPaymentID = paymentID
	m.lastPayload = payload
	return nil
}

type mockGateway struct {
	orderID     string
	createErr   error
	verifyOK    bool
	createCalls int
	verifyCalls int
}

func (m *mockGateway) CreateOrder(context.Context, int64, string, string) (string, error) {
	m.createCalls++
	if m.createErr != nil {
		return "", m.createErr
	}
	return m.orderID, nil
}

func (m *mockGateway) VerifySignature(string, string, string) bool {
	m.verifyCalls++
	return m.verifyOK
}

func (m *mockGateway) KeyID() string { return "key_test" }
