package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsReleased = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_released_total", Help: "Signals released by the tier scheduler"},
		[]string{"tier"},
	)
	SignalsBuffered = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "signals_buffered", Help: "Candidate signals currently buffered per tier"},
		[]string{"tier"},
	)
	PositionsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "positions_opened_total", Help: "Positions opened per agent"},
		[]string{"agent"},
	)
	PositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "positions_closed_total", Help: "Positions closed per agent and close reason"},
		[]string{"agent", "reason"},
	)
	AssignmentsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "assignments_skipped_total", Help: "Signals the coordinator declined, by reason"},
		[]string{"reason"},
	)
	PriceFetchRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_fetch_retries_total", Help: "Price fetch attempts beyond the first"},
		[]string{"symbol"},
	)
	PriceFetchStale = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_fetch_stale_total", Help: "Fetches that fell back to the last known price"},
		[]string{"symbol"},
	)
	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "monitor_scan_seconds", Help: "Position monitor scan duration"},
	)
)

func init() {
	prometheus.MustRegister(
		SignalsReleased, SignalsBuffered,
		PositionsOpened, PositionsClosed,
		AssignmentsSkipped,
		PriceFetchRetries, PriceFetchStale,
		ScanDuration,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
