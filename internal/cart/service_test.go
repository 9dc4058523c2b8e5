package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martxmartindia/checkout/internal/domain"
)

// mockRepository implements Repository for testing
type mockRepository struct {
	carts   map[string]*domain.Cart
	getErr  error
	addErr  error
	addCnt  int
	delCnt  int
	coupons int
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cart, nil
}

func (m *mockRepository) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.addCnt++
	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{UserID: userID}
		m.carts[userID] = cart
	}
	cart.Items = append(cart.Items, item)
	return nil
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, userID string, productID int64, quantity int) error {
	cart, ok := m.carts[userID]
	if !ok {
		return ErrCartNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			return nil
		}
	}
	return ErrItemNotFound
}

func (m *mockRepository) RemoveItem(_ context.Context, userID string, productID int64) error {
	cart, ok := m.carts[userID]
	if !ok {
		return ErrCartNotFound
	}
	items := cart.Items[:0]
	for _, it := range cart.Items {
		if it.ProductID != productID {
			items = append(items, it)
		}
	}
	cart.Items = items
	return nil
}

func (m *mockRepository) DeleteCart(_ context.Context, userID string) error {
	if _, ok := m.carts[userID]; !ok {
		return ErrCartNotFound
	}
	m.delCnt++
	delete(m.carts, userID)
	return nil
}

func (m *mockRepository) SetCoupon(_ context.Context, userID string, coupon *domain.AppliedCoupon) error {
	cart, ok := m.carts[userID]
	if !ok {
		return ErrCartNotFound
	}
	m.coupons++
	cart.Coupon = coupon
	return nil
}

func (m *mockRepository) ClearCoupon(_ context.Context, userID string) error {
	cart, ok := m.carts[userID]
	if !ok {
		return ErrCartNotFound
	}
	cart.Coupon = nil
	return nil
}

// mockCache implements Cache for testing. Set is a no-op unless storeOnSet
// is enabled: the service populates the cache from a goroutine, and tests
// must not depend on when (or whether) that write lands.
type mockCache struct {
	mu         sync.Mutex
	entries    map[string]*domain.Cart
	deletes    int
	storeOnSet bool
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.entries[userID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeOnSet {
		m.entries[userID] = cart
	}
	return nil
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.entries, userID)
	return nil
}

func (m *mockCache) deleteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

func (m *mockCache) has(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[userID]
	return ok
}

func testItem(id int64, price string, qty int) domain.CartItem {
	return domain.CartItem{
		ProductID: id,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func TestGetCart_MissingCartReturnsEmpty(t *testing.T) {
	svc := NewService(newMockRepository(), newMockCache())

	cart, err := svc.GetCart(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, "u1", cart.UserID)
	assert.True(t, cart.IsEmpty())
}

func TestGetCart_CacheHitSkipsRepository(t *testing.T) {
	repo := newMockRepository()
	repo.getErr = assert.AnError // repo must not be reached
	cache := newMockCache()
	cache.entries["u1"] = &domain.Cart{UserID: "u1", Items: []domain.CartItem{testItem(1, "10", 1)}}

	svc := NewService(repo, cache)
	cart, err := svc.GetCart(context.Background(), "u1")

	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestAddItem_InvalidatesCache(t *testing.T) {
	repo := newMockRepository()
	cache := newMockCache()
	cache.entries["u1"] = &domain.Cart{UserID: "u1"}

	svc := NewService(repo, cache)
	err := svc.AddItem(context.Background(), "u1", testItem(7, "49.99", 2))

	require.NoError(t, err)
	assert.Equal(t, 1, repo.addCnt)
	assert.Equal(t, 1, cache.deleteCount())
	assert.False(t, cache.has("u1"))
}

func TestAttachCoupon_ReplacesPrevious(t *testing.T) {
	repo := newMockRepository()
	repo.carts["u1"] = &domain.Cart{UserID: "u1", Items: []domain.CartItem{testItem(1, "100", 1)}}
	svc := NewService(repo, newMockCache())

	first := &domain.AppliedCoupon{Code: "FIRST", ComputedAmount: decimal.NewFromInt(10)}
	second := &domain.AppliedCoupon{Code: "SECOND", ComputedAmount: decimal.NewFromInt(20)}

	require.NoError(t, svc.AttachCoupon(context.Background(), "u1", first))
	require.NoError(t, svc.AttachCoupon(context.Background(), "u1", second))

	assert.Equal(t, "SECOND", repo.carts["u1"].Coupon.Code)
	assert.Equal(t, 2, repo.coupons)
}

func TestTotals_ReflectCouponRemovalImmediately(t *testing.T) {
	repo := newMockRepository()
	repo.carts["u1"] = &domain.Cart{
		UserID: "u1",
		Items:  []domain.CartItem{testItem(1, "1000", 1)},
		Coupon: &domain.AppliedCoupon{Code: "OFF", ComputedAmount: decimal.NewFromInt(100)},
	}
	svc := NewService(repo, newMockCache())

	_, withCoupon, err := svc.Totals(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, withCoupon.Discount.Equal(decimal.NewFromInt(100)))

	require.NoError(t, svc.RemoveCoupon(context.Background(), "u1"))

	_, after, err := svc.Totals(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, after.Discount.IsZero())
	assert.True(t, after.Total.Equal(decimal.NewFromInt(1180)))
}
