// Package oracle talks to the external price source and layers the retry and
// stale-fallback discipline the position monitor depends on.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Quote is one observed price for a symbol. Stale marks a quote served from
// the last successful fetch after the current fetch exhausted its retries.
type Quote struct {
	Symbol string
	Price  float64
	Ts     time.Time
	Stale  bool
}

// Client is the raw price source contract. No retry logic lives behind it.
type Client interface {
	Fetch(ctx context.Context, symbol string) (Quote, error)
}

type priceResponse struct {
	Symbol  string  `json:"symbol"`
	Price   float64 `json:"price"`
	TsMilli int64   `json:"ts"`
}

// HTTPClient fetches prices from the oracle service over HTTP.
type HTTPClient struct {
	base   string
	client *http.Client
	log    zerolog.Logger
}

// NewHTTPClient builds a client for the oracle at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		base:   strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Fetch requests the current price for symbol.
func (c *HTTPClient) Fetch(ctx context.Context, symbol string) (Quote, error) {
	endpoint := fmt.Sprintf("%s/price?symbol=%s", c.base, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build price request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("oracle status %d for %s", resp.StatusCode, symbol)
	}

	var payload priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("decode price response: %w", err)
	}
	if payload.Price <= 0 {
		return Quote{}, fmt.Errorf("oracle returned non-positive price %.8f for %s", payload.Price, symbol)
	}

	ts := time.Now()
	if payload.TsMilli > 0 {
		ts = time.UnixMilli(payload.TsMilli)
	}
	return Quote{Symbol: symbol, Price: payload.Price, Ts: ts}, nil
}
