package address

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrLookupFailed covers every pincode lookup failure: network errors,
// non-2xx responses, malformed bodies, open breaker. Callers treat it as
// advisory; it never blocks an address submission.
var ErrLookupFailed = errors.New("pincode lookup failed")

// Locality is what the external pincode resolver returns.
type Locality struct {
	District string `json:"district,omitempty"`
	State    string `json:"state,omitempty"`
}

type PincodeClient interface {
	Lookup(ctx context.Context, pincode string) (Locality, error)
}

// HTTPPincodeClient resolves pincodes against the external locality service.
// The breaker stops hammering the service while it is down; an open breaker
// surfaces as an ordinary lookup failure.
type HTTPPincodeClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[Locality]
}

func NewHTTPPincodeClient(baseURL string) *HTTPPincodeClient {
	settings := gobreaker.Settings{
		Name:    "pincode-lookup",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &HTTPPincodeClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[Locality](settings),
	}
}

func (c *HTTPPincodeClient) Lookup(ctx context.Context, pincode string) (Locality, error) {
	loc, err := c.breaker.Execute(func() (Locality, error) {
		return c.doLookup(ctx, pincode)
	})
	if err != nil {
		return Locality{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	return loc, nil
}

func (c *HTTPPincodeClient) doLookup(ctx context.Context, pincode string) (Locality, error) {
	u := fmt.Sprintf("%s/pincode-lookup?pincode=%s", c.baseURL, url.QueryEscape(pincode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Locality{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Locality{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Locality{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var loc Locality
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return Locality{}, err
	}
	return loc, nil
}
