package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHTTPClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTC" {
			t.Fatalf("unexpected symbol %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTC","price":44123.5,"ts":1700000000000}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zerolog.Nop())
	quote, err := client.Fetch(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if quote.Price != 44123.5 {
		t.Fatalf("unexpected price %.2f", quote.Price)
	}
	if quote.Ts.UnixMilli() != 1700000000000 {
		t.Fatalf("unexpected timestamp %v", quote.Ts)
	}
}

func TestHTTPClientRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zerolog.Nop())
	if _, err := client.Fetch(context.Background(), "BTC"); err == nil {
		t.Fatalf("expected error for 502 response")
	}
}

func TestHTTPClientRejectsNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"BTC","price":0}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zerolog.Nop())
	if _, err := client.Fetch(context.Background(), "BTC"); err == nil {
		t.Fatalf("expected error for zero price")
	}
}
