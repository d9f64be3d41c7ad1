// Package store is the persistence gateway for agents, accounts, and
// positions. Callers operating over the full roster must use the batch
// variants; each call is individually atomic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Subthedev/QuantumX-sub009/internal/model"
)

var (
	// ErrAgentUnknown is returned for agent ids outside the roster.
	ErrAgentUnknown = errors.New("unknown agent")
	// ErrPositionNotFound is returned when a position id cannot be resolved.
	ErrPositionNotFound = errors.New("position not found")
	// ErrPositionClosed is returned when closing an already closed position.
	ErrPositionClosed = errors.New("position already closed")
)

// OpenSpec carries everything needed to open a position for an agent.
type OpenSpec struct {
	SignalID  string
	Symbol    string
	Direction model.Direction
	Entry     float64
	Targets   []float64
	StopLoss  float64
	OpenedAt  time.Time
}

// CloseSpec carries the terminal fields written when a position closes.
type CloseSpec struct {
	Reason   model.CloseReason
	Price    float64
	ClosedAt time.Time
}

// Gateway is the batched read/write contract the arena core relies on.
type Gateway interface {
	BatchGetAccounts(ctx context.Context, agentIDs []string) (map[string]model.Account, error)
	BatchGetOpenPositions(ctx context.Context, agentIDs []string) (map[string][]model.Position, error)
	OpenPosition(ctx context.Context, agentID string, spec OpenSpec) (model.Position, error)
	ClosePosition(ctx context.Context, positionID string, spec CloseSpec) error
}
