package address

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/martxmartindia/checkout/internal/domain"
)

var ErrAddressNotFound = errors.New("address not found")

type Repository interface {
	Create(ctx context.Context, addr *domain.Address) error
	Update(ctx context.Context, addr *domain.Address) error
	Delete(ctx context.Context, userID string, id int64) error
	GetByID(ctx context.Context, userID string, id int64) (*domain.Address, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Address, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, addr *domain.Address) error {
	query := `INSERT INTO addresses
	          (user_id, contact_name, phone, email, address_line1, address_line2, city, state, zip, type, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	          RETURNING id`

	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		addr.UserID, addr.ContactName, addr.Phone, addr.Email,
		addr.AddressLine1, addr.AddressLine2, addr.City, addr.State,
		addr.Zip, string(addr.Type), now,
	).Scan(&addr.ID)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	addr.CreatedAt = now
	addr.UpdatedAt = now
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, addr *domain.Address) error {
	query := `UPDATE addresses
	          SET contact_name=$1, phone=$2, email=$3, address_line1=$4, address_line2=$5,
	              city=$6, state=$7, zip=$8, type=$9, updated_at=$10
	          WHERE id=$11 AND user_id=$12`

	result, err := r.db.ExecContext(ctx, query,
		addr.ContactName, addr.Phone, addr.Email, addr.AddressLine1, addr.AddressLine2,
		addr.City, addr.State, addr.Zip, string(addr.Type), time.Now(),
		addr.ID, addr.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrAddressNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM addresses WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrAddressNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID string, id int64) (*domain.Address, error) {
	query := `SELECT id, user_id, contact_name, phone, email, address_line1, address_line2,
	                 city, state, zip, type, created_at, updated_at
	          FROM addresses WHERE id=$1 AND user_id=$2`

	addr, err := scanAddress(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return addr, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Address, error) {
	query := `SELECT id, user_id, contact_name, phone, email, address_line1, address_line2,
	                 city, state, zip, type, created_at, updated_at
	          FROM addresses WHERE user_id=$1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var addrs []*domain.Address
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAddress(s scanner) (*domain.Address, error) {
	var (
		addr     domain.Address
		addrType string
		email    sql.NullString
		line2    sql.NullString
	)
	err := s.Scan(
		&addr.ID, &addr.UserID, &addr.ContactName, &addr.Phone, &email,
		&addr.AddressLine1, &line2, &addr.City, &addr.State, &addr.Zip,
		&addrType, &addr.CreatedAt, &addr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	addr.Email = email.String
	addr.AddressLine2 = line2.String
	addr.Type = domain.AddressType(addrType)
	return &addr, nil
}
