// Package monitor runs the recurring scan over open positions, evaluating
// exit conditions against one price snapshot per scan and executing closes.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Subthedev/QuantumX-sub009/internal/events"
	"github.com/Subthedev/QuantumX-sub009/internal/metrics"
	"github.com/Subthedev/QuantumX-sub009/internal/model"
	"github.com/Subthedev/QuantumX-sub009/internal/oracle"
	"github.com/Subthedev/QuantumX-sub009/internal/store"
)

const (
	defaultInterval = 5 * time.Second
	defaultMaxHold  = 24 * time.Hour
)

// PriceSource supplies one quote per distinct symbol for a scan.
type PriceSource interface {
	Snapshot(ctx context.Context, symbols []string) map[string]oracle.Quote
}

// Health is the operational view of the monitor loop.
type Health struct {
	LastScanAt       time.Time      `json:"last_scan_at"`
	LastScanDuration time.Duration  `json:"last_scan_duration"`
	LastScanErrors   int            `json:"last_scan_errors"`
	ClosedByReason   map[string]int `json:"closed_by_reason"`
}

// Monitor owns the open-position scan. Positions are mutated only here (and
// by manual close requests routed through the same store).
type Monitor struct {
	log      zerolog.Logger
	store    store.Gateway
	prices   PriceSource
	events   *events.Bus
	agentIDs []string
	interval time.Duration
	maxHold  time.Duration
	now      func() time.Time

	mu     sync.Mutex
	health Health
}

// Option configures Monitor construction parameters.
type Option func(*Monitor)

// WithInterval overrides the scan period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMaxHold overrides the maximum position hold duration.
func WithMaxHold(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.maxHold = d
		}
	}
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New builds a monitor over the fixed agent roster.
func New(log zerolog.Logger, gateway store.Gateway, prices PriceSource, bus *events.Bus, agents []model.Agent, opts ...Option) *Monitor {
	m := &Monitor{
		log:      log,
		store:    gateway,
		prices:   prices,
		events:   bus,
		interval: defaultInterval,
		maxHold:  defaultMaxHold,
		now:      time.Now,
	}
	for _, agent := range agents {
		m.agentIDs = append(m.agentIDs, agent.ID)
	}
	m.health.ClosedByReason = make(map[string]int)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run scans on a fixed period until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Scan(ctx)
		}
	}
}

// Scan evaluates every position open at scan start against a single price
// snapshot. A failure on one position never aborts the rest of the scan.
func (m *Monitor) Scan(ctx context.Context) {
	now := m.now()
	started := time.Now()
	scanErrors := 0

	open, err := m.store.BatchGetOpenPositions(ctx, m.agentIDs)
	if err != nil {
		m.log.Error().Err(err).Msg("scan aborted, open position read failed")
		m.recordScan(now, time.Since(started), 1, nil)
		return
	}

	positions := m.repairInvariant(ctx, open, now, &scanErrors)

	symbols := make([]string, 0, len(positions))
	seen := make(map[string]struct{}, len(positions))
	for _, pos := range positions {
		if _, dup := seen[pos.Symbol]; dup {
			continue
		}
		seen[pos.Symbol] = struct{}{}
		symbols = append(symbols, pos.Symbol)
	}
	snapshot := m.prices.Snapshot(ctx, symbols)

	closed := make(map[string]int)
	for _, pos := range positions {
		quote, ok := snapshot[pos.Symbol]
		if !ok {
			// No usable price this scan; never close on missing data.
			m.log.Debug().Str("position", pos.ID).Str("symbol", pos.Symbol).Msg("skipping exit evaluation, no price")
			continue
		}
		reason := m.evaluate(pos, quote.Price, now)
		if reason == "" {
			continue
		}
		if err := m.close(ctx, pos, reason, quote, now); err != nil {
			scanErrors++
			m.log.Error().Err(err).Str("position", pos.ID).Msg("position close failed")
			continue
		}
		closed[string(reason)]++
	}

	elapsed := time.Since(started)
	metrics.ScanDuration.Observe(elapsed.Seconds())
	m.recordScan(now, elapsed, scanErrors, closed)
}

// Health returns a copy of the monitor's operational state.
func (m *Monitor) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.health
	out.ClosedByReason = make(map[string]int, len(m.health.ClosedByReason))
	for reason, n := range m.health.ClosedByReason {
		out.ClosedByReason[reason] = n
	}
	return out
}

// evaluate applies the exit conditions in fixed priority order: stop-loss,
// then take-profit, then timeout. At most one reason per scan.
func (m *Monitor) evaluate(pos model.Position, price float64, now time.Time) model.CloseReason {
	switch {
	case stopTouched(pos, price):
		return model.CloseStopLoss
	case targetTouched(pos, price):
		return model.CloseTakeProfit
	case pos.Age(now) >= m.maxHold:
		return model.CloseTimeout
	default:
		return ""
	}
}

func (m *Monitor) close(ctx context.Context, pos model.Position, reason model.CloseReason, quote oracle.Quote, now time.Time) error {
	if err := m.store.ClosePosition(ctx, pos.ID, store.CloseSpec{
		Reason:   reason,
		Price:    quote.Price,
		ClosedAt: now,
	}); err != nil {
		return err
	}

	metrics.PositionsClosed.WithLabelValues(pos.AgentID, string(reason)).Inc()
	m.events.Publish(events.Event{
		Type:       events.TypePositionClosed,
		AgentID:    pos.AgentID,
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Direction:  string(pos.Direction),
		Reason:     string(reason),
		Price:      quote.Price,
		Stale:      quote.Stale,
	})
	m.log.Info().
		Str("agent", pos.AgentID).
		Str("position", pos.ID).
		Str("symbol", pos.Symbol).
		Str("reason", string(reason)).
		Float64("close_price", quote.Price).
		Bool("stale_price", quote.Stale).
		Msg("position closed")
	return nil
}

// repairInvariant force-closes all but the oldest open position for any agent
// observed holding more than one. The protocol makes this unreachable; if it
// fires anyway, the event is reported loudly and the roster keeps trading.
func (m *Monitor) repairInvariant(ctx context.Context, open map[string][]model.Position, now time.Time, scanErrors *int) []model.Position {
	var out []model.Position
	for _, agentID := range m.agentIDs {
		positions := open[agentID]
		if len(positions) <= 1 {
			out = append(out, positions...)
			continue
		}

		sort.Slice(positions, func(i, j int) bool {
			return positions[i].OpenedAt.Before(positions[j].OpenedAt)
		})
		m.log.Error().
			Str("agent", agentID).
			Int("open_positions", len(positions)).
			Msg("open-position invariant violated, force closing extras")

		for _, extra := range positions[1:] {
			if err := m.store.ClosePosition(ctx, extra.ID, store.CloseSpec{
				Reason:   model.CloseManual,
				Price:    extra.Entry,
				ClosedAt: now,
			}); err != nil {
				*scanErrors++
				m.log.Error().Err(err).Str("position", extra.ID).Msg("invariant repair close failed")
				continue
			}
			metrics.PositionsClosed.WithLabelValues(agentID, string(model.CloseManual)).Inc()
			m.events.Publish(events.Event{
				Type:       events.TypeInvariantRepair,
				AgentID:    agentID,
				PositionID: extra.ID,
				Symbol:     extra.Symbol,
				Reason:     string(model.CloseManual),
				Price:      extra.Entry,
			})
		}
		out = append(out, positions[0])
	}
	return out
}

func (m *Monitor) recordScan(at time.Time, took time.Duration, errs int, closed map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health.LastScanAt = at
	m.health.LastScanDuration = took
	m.health.LastScanErrors = errs
	for reason, n := range closed {
		m.health.ClosedByReason[reason] += n
	}
}

func stopTouched(pos model.Position, price float64) bool {
	if pos.Direction == model.Short {
		return price >= pos.StopLoss
	}
	return price <= pos.StopLoss
}

func targetTouched(pos model.Position, price float64) bool {
	for _, target := range pos.Targets {
		if pos.Direction == model.Short {
			if price <= target {
				return true
			}
		} else if price >= target {
			return true
		}
	}
	return false
}
