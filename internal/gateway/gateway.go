// Package gateway wraps the hosted payment provider: creating a gateway-side
// order for the widget to charge against, and verifying the signed callback
// the widget hands back after payment.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrGatewayOrderFailed = errors.New("failed to create gateway order")

type Client interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
	KeyID() string
}

// WidgetOptions is everything the client needs to open the hosted payment
// widget. Amount is in minor units (paise).
type WidgetOptions struct {
	Key            string  `json:"key"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	OrderReference string  `json:"order_reference"`
	Prefill        Prefill `json:"prefill"`
}

type Prefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Config struct {
	BaseURL string
	KeyID   string
	Secret  string
}

type HTTPClient struct {
	cfg    Config
	client *http.Client
}

func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) KeyID() string {
	return c.cfg.KeyID
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers the payable amount with the gateway and returns the
// gateway-side order id the widget charges against.
func (c *HTTPClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gateway order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.Secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayOrderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status %d", ErrGatewayOrderFailed, resp.StatusCode)
	}

	var parsed createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: bad response body: %v", ErrGatewayOrderFailed, err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("%w: empty order id", ErrGatewayOrderFailed)
	}
	return parsed.ID, nil
}

// VerifySignature checks the callback signature the widget returned.
// Anything that does not match exactly is a failure; there is no partial
// trust of the payload.
func (c *HTTPClient) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return VerifySignature(gatewayOrderID, paymentID, signature, c.cfg.Secret)
}
