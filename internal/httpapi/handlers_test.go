package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martxmartindia/checkout/internal/address"
	"github.com/martxmartindia/checkout/internal/checkout"
	"github.com/martxmartindia/checkout/internal/domain"
)

func authed(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
}

type mockAddressRepo struct {
	addrs   map[int64]*domain.Address
	nextID  int64
	lastErr error
}

func newMockAddressRepo() *mockAddressRepo {
	return &mockAddressRepo{addrs: make(map[int64]*domain.Address), nextID: 1}
}

func (m *mockAddressRepo) Create(_ context.Context, addr *domain.Address) error {
	if m.lastErr != nil {
		return m.lastErr
	}
	addr.ID = m.nextID
	m.nextID++
	m.addrs[addr.ID] = addr
	return nil
}

func (m *mockAddressRepo) Update(_ context.Context, addr *domain.Address) error {
	if _, ok := m.addrs[addr.ID]; !ok {
		return address.ErrAddressNotFound
	}
	m.addrs[addr.ID] = addr
	return nil
}

func (m *mockAddressRepo) Delete(_ context.Context, _ string, id int64) error {
	if _, ok := m.addrs[id]; !ok {
		return address.ErrAddressNotFound
	}
	delete(m.addrs, id)
	return nil
}

func (m *mockAddressRepo) GetByID(_ context.Context, _ string, id int64) (*domain.Address, error) {
	a, ok := m.addrs[id]
	if !ok {
		return nil, address.ErrAddressNotFound
	}
	return a, nil
}

func (m *mockAddressRepo) ListByUser(_ context.Context, _ string) ([]*domain.Address, error) {
	var out []*domain.Address
	for _, a := range m.addrs {
		out = append(out, a)
	}
	return out, nil
}

type stubPincode struct {
	loc address.Locality
	err error
}

func (s stubPincode) Lookup(context.Context, string) (address.Locality, error) {
	return s.loc, s.err
}

func validAddressBody() []byte {
	b, _ := json.Marshal(AddressRequestDTO{
		ContactName:  "Asha Verma",
		Phone:        "9876543210",
		AddressLine1: "14 MG Road, Shivaji Nagar",
		City:         "Pune",
		State:        "Maharashtra",
		Zip:          "411001",
		Type:         "DISPATCH",
	})
	return b
}

func TestCreateAddress_Valid(t *testing.T) {
	handler := NewAddressHandler(newMockAddressRepo(), stubPincode{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("POST", "/", bytes.NewReader(validAddressBody())), "u1")

	handler.Create(recorder, request)

	require.Equal(t, http.StatusCreated, recorder.Code)

	var created domain.Address
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "u1", created.UserID)
}

func TestCreateAddress_ValidationErrors(t *testing.T) {
	repo := newMockAddressRepo()
	handler := NewAddressHandler(repo, stubPincode{}, 5*time.Second)

	body, _ := json.Marshal(AddressRequestDTO{
		ContactName: "A",
		Phone:       "12345",
		Zip:         "4110",
		Type:        "HOME",
	})
	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("POST", "/", bytes.NewReader(body)), "u1")

	handler.Create(recorder, request)

	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "validation_failed", resp.Code)
	assert.NotEmpty(t, resp.Details)
	assert.Empty(t, repo.addrs, "invalid address must not be saved")
}

func TestCreateAddress_Unauthorized(t *testing.T) {
	handler := NewAddressHandler(newMockAddressRepo(), stubPincode{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.Create(recorder, httptest.NewRequest("POST", "/", bytes.NewReader(validAddressBody())))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestPincodeLookup_FailureIsAdvisory(t *testing.T) {
	handler := NewAddressHandler(newMockAddressRepo(), stubPincode{err: address.ErrLookupFailed}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("GET", "/?pincode=411001", nil), "u1")

	handler.PincodeLookup(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code, "a broken resolver must not fail the request")

	var resp PincodeLookupResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.False(t, resp.Found)
}

func TestPincodeLookup_Found(t *testing.T) {
	handler := NewAddressHandler(newMockAddressRepo(),
		stubPincode{loc: address.Locality{District: "Pune", State: "Maharashtra"}}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("GET", "/?pincode=411001", nil), "u1")

	handler.PincodeLookup(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp PincodeLookupResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.True(t, resp.Found)
	assert.Equal(t, "Pune", resp.City)
}

func TestPincodeLookup_BadPincode(t *testing.T) {
	handler := NewAddressHandler(newMockAddressRepo(), stubPincode{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("GET", "/?pincode=41100", nil), "u1")

	handler.PincodeLookup(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

type mockCartService struct {
	cart    *domain.Cart
	addErr  error
	lastAdd *domain.CartItem
}

func (m *mockCartService) Totals(_ context.Context, userID string) (*domain.Cart, domain.OrderTotals, error) {
	if m.cart == nil {
		m.cart = &domain.Cart{UserID: userID}
	}
	return m.cart, domain.OrderTotals{}, nil
}

func (m *mockCartService) AddItem(_ context.Context, _ string, item domain.CartItem) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.lastAdd = &item
	return nil
}

func (m *mockCartService) UpdateQuantity(context.Context, string, int64, int) error { return nil }
func (m *mockCartService) RemoveItem(context.Context, string, int64) error         { return nil }
func (m *mockCartService) ClearCart(context.Context, string) error                 { return nil }

type mockCouponService struct {
	applyErr error
	removed  int
}

func (m *mockCouponService) Apply(context.Context, string, string) (*domain.AppliedCoupon, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	return &domain.AppliedCoupon{Code: "SAVE10"}, nil
}

func (m *mockCouponService) Remove(context.Context, string) error {
	m.removed++
	return nil
}

func TestAddItem_QuantityOutOfRange(t *testing.T) {
	carts := &mockCartService{}
	handler := NewCartHandler(carts, &mockCouponService{}, 5*time.Second)

	body, _ := json.Marshal(AddItemRequestDTO{
		ProductID: 1,
		UnitPrice: decimal.NewFromInt(100),
		Quantity:  100,
	})
	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("POST", "/", bytes.NewReader(body)), "u1")

	handler.AddItem(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Nil(t, carts.lastAdd)
}

func TestAddItem_Success(t *testing.T) {
	carts := &mockCartService{}
	handler := NewCartHandler(carts, &mockCouponService{}, 5*time.Second)

	body, _ := json.Marshal(AddItemRequestDTO{
		ProductID:   7,
		DisplayName: "Steel Bottle",
		UnitPrice:   decimal.NewFromInt(250),
		Quantity:    2,
	})
	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("POST", "/", bytes.NewReader(body)), "u1")

	handler.AddItem(recorder, request)

	require.Equal(t, http.StatusCreated, recorder.Code)
	require.NotNil(t, carts.lastAdd)
	assert.Equal(t, int64(7), carts.lastAdd.ProductID)
	assert.Equal(t, 2, carts.lastAdd.Quantity)
}

type mockCheckoutService struct {
	session   *domain.CheckoutSession
	submit    *checkout.SubmitResult
	order     *domain.Order
	verifyErr error
	submitErr error
}

func (m *mockCheckoutService) Begin(context.Context, string, string) (*domain.CheckoutSession, error) {
	return m.session, nil
}

func (m *mockCheckoutService) GetSession(context.Context, string, uuid.UUID) (*domain.CheckoutSession, error) {
	return m.session, nil
}

func (m *mockCheckoutService) SelectAddresses(context.Context, string, uuid.UUID, int64, *int64, bool) (*domain.CheckoutSession, error) {
	return m.session, nil
}

func (m *mockCheckoutService) ContinueToPayment(context.Context, string, uuid.UUID) (*domain.CheckoutSession, error) {
	return m.session, nil
}

func (m *mockCheckoutService) BackToAddress(context.Context, string, uuid.UUID) (*domain.CheckoutSession, error) {
	return m.session, nil
}

func (m *mockCheckoutService) DismissWidget(context.Context, string, uuid.UUID) (*domain.CheckoutSession, error) {
	return m.session, nil
}

func (m *mockCheckoutService) SubmitPayment(context.Context, string, uuid.UUID, domain.PaymentMethod, string) (*checkout.SubmitResult, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.submit, nil
}

func (m *mockCheckoutService) VerifyPayment(context.Context, string, uuid.UUID, uuid.UUID, string, string) (*domain.Order, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.order, nil
}

func TestSubmit_BadPaymentMethod(t *testing.T) {
	handler := NewCheckoutHandler(&mockCheckoutService{}, 5*time.Second)

	body, _ := json.Marshal(SubmitPaymentRequestDTO{
		SessionID:     uuid.NewString(),
		PaymentMethod: "CHEQUE",
	})
	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("POST", "/", bytes.NewReader(body)), "u1")

	handler.Submit(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestSubmit_EmptyCartIsBadRequest(t *testing.T) {
	handler := NewCheckoutHandler(&mockCheckoutService{submitErr: checkout.ErrEmptyCart}, 5*time.Second)

	body, _ := json.Marshal(SubmitPaymentRequestDTO{
		SessionID:     uuid.NewString(),
		PaymentMethod: "COD",
	})
	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("POST", "/", bytes.NewReader(body)), "u1")

	handler.Submit(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestVerify_FailedSignature(t *testing.T) {
	handler := NewCheckoutHandler(&mockCheckoutService{verifyErr: checkout.ErrVerificationFailed}, 5*time.Second)

	body, _ := json.Marshal(VerifyPaymentRequestDTO{
		SessionID: uuid.NewString(),
		OrderID:   uuid.NewString(),
		PaymentID: "pay_1",
		Signature: "bad",
	})
	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("POST", "/", bytes.NewReader(body)), "u1")

	handler.Verify(recorder, request)

	require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "verification_failed", resp.Code)
}

func TestVerify_MissingFields(t *testing.T) {
	handler := NewCheckoutHandler(&mockCheckoutService{}, 5*time.Second)

	body, _ := json.Marshal(VerifyPaymentRequestDTO{SessionID: uuid.NewString(), OrderID: uuid.NewString()})
	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("POST", "/", bytes.NewReader(body)), "u1")

	handler.Verify(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetSession_BadUUID(t *testing.T) {
	handler := NewCheckoutHandler(&mockCheckoutService{}, 5*time.Second)

	r := chi.NewRouter()
	r.Get("/checkout/session/{session_id}", handler.GetSession)

	recorder := httptest.NewRecorder()
	request := authed(httptest.NewRequest("GET", "/checkout/session/not-a-uuid", nil), "u1")

	r.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"

	var gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = getUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := JWTAuth(secret)(next)

	t.Run("missing token", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		protected.ServeHTTP(recorder, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest("GET", "/", nil)
		request.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "u1"))
		protected.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest("GET", "/", nil)
		request.Header.Set("Authorization", "Bearer "+signToken(t, secret, "u1"))
		protected.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "u1", gotUser)
	})
}

func TestRouter_Health(t *testing.T) {
	router := NewRouter(RouterConfig{
		JWTSecret:      "s",
		RequestTimeout: 5 * time.Second,
		AllowedOrigins: []string{"*"},
	},
		NewAddressHandler(newMockAddressRepo(), stubPincode{}, 5*time.Second),
		NewCartHandler(&mockCartService{}, &mockCouponService{}, 5*time.Second),
		NewCheckoutHandler(&mockCheckoutService{}, 5*time.Second),
		NewOrdersHandler(&stubOrderReader{}, 5*time.Second),
	)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_RejectsAnonymousAPI(t *testing.T) {
	router := NewRouter(RouterConfig{
		JWTSecret:      "s",
		RequestTimeout: 5 * time.Second,
		AllowedOrigins: []string{"*"},
	},
		NewAddressHandler(newMockAddressRepo(), stubPincode{}, 5*time.Second),
		NewCartHandler(&mockCartService{}, &mockCouponService{}, 5*time.Second),
		NewCheckoutHandler(&mockCheckoutService{}, 5*time.Second),
		NewOrdersHandler(&stubOrderReader{}, 5*time.Second),
	)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/v1/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

type stubOrderReader struct{}

func (stubOrderReader) GetOrderByID(context.Context, uuid.UUID) (*domain.Order, error) {
	return nil, nil
}

func (stubOrderReader) ListOrdersByUserID(context.Context, string) ([]*domain.Order, error) {
	return nil, nil
}
