package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/martxmartindia/checkout/internal/domain"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateCheckout = errors.New("order for this checkout already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a pending domain event written in the same transaction as
// the order state change it describes.
type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type Repository interface {
	// CreateOrder persists the order; when outboxPayload is non-nil an
	// order-completed event is written in the same transaction.
	CreateOrder(ctx context.Context, order *domain.Order, outboxPayload []byte) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	SetGatewayOrder(ctx context.Context, id uuid.UUID, gatewayOrderID string) error
	// MarkPaid records the verified payment and queues the completion event
	// atomically.
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID string, outboxPayload []byte) error
	MarkConfirmed(ctx context.Context, id uuid.UUID) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
	RunMigrations(*Credentials) error
	Close() error
}
