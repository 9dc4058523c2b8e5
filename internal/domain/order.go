package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPlaced         OrderStatus = "PLACED"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusFailed         OrderStatus = "FAILED"
)

type PaymentMethod string

const (
	PaymentMethodGateway        PaymentMethod = "GATEWAY"
	PaymentMethodCashOnDelivery PaymentMethod = "COD"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodGateway || m == PaymentMethodCashOnDelivery
}

type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// AddressSnapshot freezes the delivery details at order creation time so a
// later edit of the address book cannot rewrite a placed order.
type AddressSnapshot struct {
	ContactName  string `json:"contact_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

type Order struct {
	ID                uuid.UUID        `json:"id"`
	CheckoutID        uuid.UUID        `json:"checkout_id"`
	OrderNumber       string           `json:"order_number"`
	UserID            string           `json:"user_id"`
	Amount            decimal.Decimal  `json:"amount"`
	Currency          string           `json:"currency"`
	PaymentMethod     PaymentMethod    `json:"payment_method"`
	Status            OrderStatus      `json:"status"`
	ShippingAddressID int64            `json:"shipping_address_id"`
	BillingAddressID  int64            `json:"billing_address_id"`
	ShippingSnapshot  *AddressSnapshot `json:"shipping_snapshot,omitempty"`
	GatewayOrderID    string           `json:"gateway_order_id,omitempty"`
	GatewayPaymentID  string           `json:"gateway_payment_id,omitempty"`
	Notes             string           `json:"notes,omitempty"`
	Items             []OrderItem      `json:"items"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
