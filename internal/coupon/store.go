package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/martxmartindia/checkout/internal/domain"
)

var ErrCouponNotFound = errors.New("coupon not found")

// Store defines the lookup interface the apply flow delegates validation to.
type Store interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT code, discount_type, discount_value, min_order_value, valid_from, valid_to, active
	          FROM coupons WHERE code = $1`

	var (
		c             domain.Coupon
		discountValue string
		minOrderValue string
		discountType  string
		validFrom     time.Time
		validTo       time.Time
	)
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&c.Code, &discountType, &discountValue, &minOrderValue, &validFrom, &validTo, &c.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	c.DiscountType = domain.DiscountType(discountType)
	c.ValidFrom = validFrom
	c.ValidTo = validTo
	if c.DiscountValue, err = decimal.NewFromString(discountValue); err != nil {
		return nil, fmt.Errorf("bad discount value %q: %w", discountValue, err)
	}
	if c.MinOrderValue, err = decimal.NewFromString(minOrderValue); err != nil {
		return nil, fmt.Errorf("bad min order value %q: %w", minOrderValue, err)
	}
	return &c, nil
}
