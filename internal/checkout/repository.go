package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/martxmartindia/checkout/internal/domain"
)

var ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")

type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.CheckoutSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*domain.CheckoutSession, error)
	GetSessionByIdempotencyKey(ctx context.Context, key string) (*domain.CheckoutSession, error)
	// SaveSession persists the mutable fields: step, addresses, order link,
	// snapshot.
	SaveSession(ctx context.Context, session *domain.CheckoutSession) error
}

type PostgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

func (r *PostgresSessionRepository) CreateSession(ctx context.Context, session *domain.CheckoutSession) error {
	query := `INSERT INTO checkout_sessions
	          (id, user_id, step, billing_same_as_shipping, idempotency_key, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $6)`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, string(session.Step),
		session.BillingSameAsShipping, session.IdempotencyKey, now)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	return nil
}

func (r *PostgresSessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*domain.CheckoutSession, error) {
	session, err := r.scanSession(r.db.QueryRowContext(ctx, selectSession+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

func (r *PostgresSessionRepository) GetSessionByIdempotencyKey(ctx context.Context, key string) (*domain.CheckoutSession, error) {
	session, err := r.scanSession(r.db.QueryRowContext(ctx, selectSession+` WHERE idempotency_key = $1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	return session, err
}

func (r *PostgresSessionRepository) SaveSession(ctx context.Context, session *domain.CheckoutSession) error {
	query := `UPDATE checkout_sessions
	          SET step=$1, shipping_address_id=$2, billing_address_id=$3, billing_same_as_shipping=$4,
	              order_id=$5, gateway_order_id=$6, cart_snapshot=$7, updated_at=NOW()
	          WHERE id=$8`

	result, err := r.db.ExecContext(ctx, query,
		string(session.Step), session.ShippingAddressID, session.BillingAddressID,
		session.BillingSameAsShipping, session.OrderID, nullIfEmpty(session.GatewayOrderID),
		session.CartSnapshot, session.ID)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

const selectSession = `SELECT id, user_id, step, shipping_address_id, billing_address_id,
                              billing_same_as_shipping, order_id, COALESCE(gateway_order_id, ''),
                              idempotency_key, cart_snapshot, created_at, updated_at
                       FROM checkout_sessions`

func (r *PostgresSessionRepository) scanSession(row *sql.Row) (*domain.CheckoutSession, error) {
	var (
		session domain.CheckoutSession
		step    string
	)
	err := row.Scan(
		&session.ID, &session.UserID, &step,
		&session.ShippingAddressID, &session.BillingAddressID,
		&session.BillingSameAsShipping, &session.OrderID, &session.GatewayOrderID,
		&session.IdempotencyKey, &session.CartSnapshot,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.Step = domain.CheckoutStep(step)
	return &session, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
