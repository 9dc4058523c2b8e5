package order

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// OrderCompletedEvent mirrors the outbox payload written by the checkout
// orchestrator on a successful checkout.
type OrderCompletedEvent struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	UserID        string `json:"user_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
}

// FulfillmentConsumer confirms completed orders for downstream fulfillment.
type FulfillmentConsumer struct {
	repo   Repository
	reader *kafka.Reader
}

func NewFulfillmentConsumer(repo Repository, topic string, brokers ...string) *FulfillmentConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "fulfillment",
		MaxBytes: 10e6, // 10MB
	})
	return &FulfillmentConsumer{repo, reader}
}

func (c *FulfillmentConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *FulfillmentConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

func (c *FulfillmentConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error reading message: %v", err)
		return
	}

	var event OrderCompletedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Printf("error parsing message: %v", err)
		return
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		log.Printf("invalid order_id %q: %v", event.OrderID, err)
		return
	}

	// MarkConfirmed only touches PAID/PLACED orders, so redelivery is harmless.
	if err := c.repo.MarkConfirmed(ctx, orderID); err != nil {
		log.Printf("failed to confirm order %s: %v", event.OrderID, err)
		return
	}

	log.Printf("order %s confirmed for fulfillment", event.OrderID)
}
