// Command oraclemock serves a random-walk price oracle for local arena runs.
// FAIL_RATE (0..1) injects transient 503s to exercise the retry path.
package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/Subthedev/QuantumX-sub009/internal/util"
)

type walker struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (w *walker) next(symbol string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	price, ok := w.prices[symbol]
	if !ok {
		// Seed unseen symbols deterministically off the symbol name.
		price = 100
		for _, r := range symbol {
			price += float64(r)
		}
	}
	price *= 1 + (rand.Float64()-0.5)*0.01
	w.prices[symbol] = price
	return price
}

func main() {
	addr := flag.String("addr", ":9800", "listen address")
	flag.Parse()

	_ = godotenv.Load()
	log := util.NewLogger("oraclemock", "info")

	failRate := 0.0
	if raw := os.Getenv("FAIL_RATE"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed <= 1 {
			failRate = parsed
		}
	}

	w := &walker{prices: make(map[string]float64)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /price", func(rw http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
		if symbol == "" {
			http.Error(rw, "symbol required", http.StatusBadRequest)
			return
		}
		if failRate > 0 && rand.Float64() < failRate {
			http.Error(rw, "simulated outage", http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"symbol": symbol,
			"price":  w.next(symbol),
			"ts":     time.Now().UnixMilli(),
		})
	})

	log.Info().Str("addr", *addr).Float64("fail_rate", failRate).Msg("mock oracle up")
	if err := (&http.Server{Addr: *addr, Handler: mux}).ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("mock oracle stopped")
	}
}
