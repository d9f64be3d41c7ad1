// Package model defines the entities shared between the scheduler, the
// assignment coordinator, the position monitor, and the persistence gateway.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Direction enumerates the two sides a signal or position can take.
type Direction string

const (
	// Long profits when price rises above entry.
	Long Direction = "LONG"
	// Short profits when price falls below entry.
	Short Direction = "SHORT"
)

// PositionStatus tracks the lifecycle of a simulated trade.
type PositionStatus string

const (
	// StatusOpen marks a position still under monitoring.
	StatusOpen PositionStatus = "OPEN"
	// StatusClosed marks a terminal position; closed positions never reopen.
	StatusClosed PositionStatus = "CLOSED"
)

// CloseReason records why a position was closed.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "TAKE_PROFIT"
	CloseStopLoss   CloseReason = "STOP_LOSS"
	CloseTimeout    CloseReason = "TIMEOUT"
	CloseManual     CloseReason = "MANUAL"
)

// Signal is a candidate trade idea. Immutable once created; a fresher signal
// for the same (symbol, direction) supersedes it rather than mutating it.
type Signal struct {
	ID         string
	Symbol     string
	Direction  Direction
	Confidence float64
	Entry      float64
	Targets    []float64 // ordered nearest-first from entry
	StopLoss   float64
	Tier       string // stamped by the scheduler on release
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the signal is past its expiry at the given instant.
func (s Signal) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Key identifies the (symbol, direction) slot a signal occupies for
// duplicate suppression.
func (s Signal) Key() string {
	return s.Symbol + "/" + string(s.Direction)
}

// NewID mints an identifier for signals and positions.
func NewID() string { return uuid.NewString() }

// Position is an open or closed simulated trade owned by exactly one agent.
type Position struct {
	ID          string
	AgentID     string
	SignalID    string
	Symbol      string
	Direction   Direction
	Entry       float64
	Targets     []float64
	StopLoss    float64
	OpenedAt    time.Time
	Status      PositionStatus
	CloseReason CloseReason
	ClosePrice  float64
	ClosedAt    time.Time
}

// Return computes the fractional profit of the position marked at price.
func (p Position) Return(price float64) float64 {
	if p.Entry == 0 {
		return 0
	}
	r := (price - p.Entry) / p.Entry
	if p.Direction == Short {
		r = -r
	}
	return r
}

// Age reports how long the position has been open at the given instant.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}

// Agent is one trading identity from the fixed roster. Created at startup,
// never destroyed; only its open-position reference changes.
type Agent struct {
	ID           string
	Name         string
	StrategyPool string // opaque to the arena core
}

// Account is a per-agent balance snapshot recomputed from closed positions.
type Account struct {
	AgentID      string
	StartingCash float64
	Cash         float64
	RealizedPnL  float64
	Equity       float64
	ClosedTrades int
}
