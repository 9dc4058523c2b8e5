package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/martxmartindia/checkout/internal/domain"
	"github.com/martxmartindia/checkout/internal/pricing"
)

type Service struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewService(repo Repository, cache Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil && errors.Is(errGet, ErrCartNotFound) { // no cart yet, return an empty one
			return &domain.Cart{
				UserID:    userID,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), userID, cart)
			if errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// Totals recomputes order totals from the current cart contents. Nothing is
// cached here: a coupon attached or removed a moment ago is reflected in the
// very next call.
func (s *Service) Totals(ctx context.Context, userID string) (*domain.Cart, domain.OrderTotals, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, domain.OrderTotals{}, err
	}
	return cart, pricing.Compute(cart.Items, cart.Coupon), nil
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if errAdd := s.repo.AddItem(ctx, userID, item); errAdd != nil {
		log.Printf("repo add item error: %v", errAdd)
		return errAdd
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	if errUpdate := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); errUpdate != nil {
		log.Printf("repo update item quantity error: %v", errUpdate)
		return errUpdate
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID string, productID int64) error {
	if errRemove := s.repo.RemoveItem(ctx, userID, productID); errRemove != nil {
		log.Printf("repo remove item error: %v", errRemove)
		return errRemove
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if errDelete := s.repo.DeleteCart(ctx, userID); errDelete != nil {
		log.Printf("repo delete cart error: %v", errDelete)
		return errDelete
	}

	s.invalidateCache(userID)
	return nil
}

// AttachCoupon stores the single active coupon, replacing any previous one.
func (s *Service) AttachCoupon(ctx context.Context, userID string, coupon *domain.AppliedCoupon) error {
	if err := s.repo.SetCoupon(ctx, userID, coupon); err != nil {
		log.Printf("repo set coupon error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) RemoveCoupon(ctx context.Context, userID string) error {
	if err := s.repo.ClearCoupon(ctx, userID); err != nil {
		log.Printf("repo clear coupon error: %v", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if errInvalidate := s.cache.Delete(ctx, userID); errInvalidate != nil {
		log.Printf("cache invalidate error: %v", errInvalidate)
	}
}
