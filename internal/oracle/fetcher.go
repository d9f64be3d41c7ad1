package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/Subthedev/QuantumX-sub009/internal/metrics"
)

// ErrNoPrice is returned when every attempt failed and no last-known price
// exists for the symbol. Callers must skip exit evaluation for that symbol.
var ErrNoPrice = errors.New("no price available")

const (
	defaultAttempts   = 4
	defaultBackoffMin = time.Second
	defaultBackoffMax = 8 * time.Second
)

// Fetcher wraps a Client with bounded exponential-backoff retries and a
// last-known-price fallback per symbol.
type Fetcher struct {
	client   Client
	log      zerolog.Logger
	attempts int
	min      time.Duration
	max      time.Duration

	mu        sync.RWMutex
	lastKnown map[string]Quote
}

// FetcherOption configures Fetcher construction parameters.
type FetcherOption func(*Fetcher)

// WithAttempts overrides the total attempt budget (first try included).
func WithAttempts(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithBackoff overrides the retry delay envelope.
func WithBackoff(min, max time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if min > 0 {
			f.min = min
		}
		if max > 0 {
			f.max = max
		}
	}
}

// NewFetcher builds a retrying fetcher around the given client.
func NewFetcher(client Client, log zerolog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    client,
		log:       log,
		attempts:  defaultAttempts,
		min:       defaultBackoffMin,
		max:       defaultBackoffMax,
		lastKnown: make(map[string]Quote),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetPrice fetches the current price for symbol, retrying transient failures
// with exponential backoff. When every attempt fails it degrades to the last
// successfully observed price marked Stale, or ErrNoPrice if none exists.
func (f *Fetcher) GetPrice(ctx context.Context, symbol string) (Quote, error) {
	delay := &backoff.Backoff{Min: f.min, Max: f.max, Factor: 2}

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		quote, err := f.client.Fetch(ctx, symbol)
		if err == nil {
			f.remember(quote)
			return quote, nil
		}
		lastErr = err
		if attempt == f.attempts {
			break
		}
		metrics.PriceFetchRetries.WithLabelValues(symbol).Inc()
		f.log.Debug().Err(err).Str("symbol", symbol).Int("attempt", attempt).Msg("price fetch failed, backing off")
		select {
		case <-time.After(delay.Duration()):
		case <-ctx.Done():
			return Quote{}, ctx.Err()
		}
	}

	if quote, ok := f.known(symbol); ok {
		quote.Stale = true
		metrics.PriceFetchStale.WithLabelValues(symbol).Inc()
		f.log.Warn().Err(lastErr).Str("symbol", symbol).Time("observed_at", quote.Ts).Msg("price fetch exhausted, serving last known price")
		return quote, nil
	}
	return Quote{}, fmt.Errorf("fetch %s after %d attempts (%v): %w", symbol, f.attempts, lastErr, ErrNoPrice)
}

// Snapshot fetches one price per distinct symbol for a monitor scan. Symbols
// whose fetch hard-fails are omitted so their positions are skipped this scan.
func (f *Fetcher) Snapshot(ctx context.Context, symbols []string) map[string]Quote {
	out := make(map[string]Quote, len(symbols))
	for _, symbol := range symbols {
		if _, done := out[symbol]; done {
			continue
		}
		quote, err := f.GetPrice(ctx, symbol)
		if err != nil {
			f.log.Warn().Err(err).Str("symbol", symbol).Msg("no price for symbol, skipping this scan")
			continue
		}
		out[symbol] = quote
	}
	return out
}

// LastKnown returns the most recent successfully fetched quote for symbol.
func (f *Fetcher) LastKnown(symbol string) (Quote, bool) {
	return f.known(symbol)
}

func (f *Fetcher) remember(quote Quote) {
	f.mu.Lock()
	f.lastKnown[quote.Symbol] = quote
	f.mu.Unlock()
}

func (f *Fetcher) known(symbol string) (Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	quote, ok := f.lastKnown[symbol]
	return quote, ok
}
