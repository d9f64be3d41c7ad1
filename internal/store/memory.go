package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/Subthedev/QuantumX-sub009/internal/model"
)

// Memory is an in-process Gateway. It keeps per-agent accounts and the full
// position history behind one mutex and hands out copies, never internal
// slices. Accounts are recomputed from closed positions on every close.
type Memory struct {
	mu        sync.Mutex
	stake     float64
	agents    []model.Agent
	accounts  map[string]model.Account
	positions map[string]*model.Position
	byAgent   map[string][]string // position ids in open order
}

// NewMemory seeds a gateway with the fixed roster, one account per agent.
func NewMemory(agents []model.Agent, startingCash, stakePerTrade float64) *Memory {
	m := &Memory{
		stake:     stakePerTrade,
		agents:    append([]model.Agent(nil), agents...),
		accounts:  make(map[string]model.Account, len(agents)),
		positions: make(map[string]*model.Position),
		byAgent:   make(map[string][]string, len(agents)),
	}
	for _, agent := range agents {
		m.accounts[agent.ID] = model.Account{
			AgentID:      agent.ID,
			StartingCash: startingCash,
			Cash:         startingCash,
			Equity:       startingCash,
		}
	}
	return m
}

// Agents returns the roster in slot order.
func (m *Memory) Agents() []model.Agent {
	return append([]model.Agent(nil), m.agents...)
}

// BatchGetAccounts returns account snapshots for the requested agents.
func (m *Memory) BatchGetAccounts(_ context.Context, agentIDs []string) (map[string]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]model.Account, len(agentIDs))
	for _, id := range agentIDs {
		account, ok := m.accounts[id]
		if !ok {
			return nil, fmt.Errorf("batch get accounts %q: %w", id, ErrAgentUnknown)
		}
		out[id] = account
	}
	return out, nil
}

// BatchGetOpenPositions returns copies of every OPEN position per agent.
func (m *Memory) BatchGetOpenPositions(_ context.Context, agentIDs []string) (map[string][]model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]model.Position, len(agentIDs))
	for _, id := range agentIDs {
		if _, ok := m.accounts[id]; !ok {
			return nil, fmt.Errorf("batch get positions %q: %w", id, ErrAgentUnknown)
		}
		var open []model.Position
		for _, posID := range m.byAgent[id] {
			if pos := m.positions[posID]; pos.Status == model.StatusOpen {
				open = append(open, clonePosition(pos))
			}
		}
		out[id] = open
	}
	return out, nil
}

// OpenPosition creates a new OPEN position owned by agentID.
func (m *Memory) OpenPosition(_ context.Context, agentID string, spec OpenSpec) (model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[agentID]; !ok {
		return model.Position{}, fmt.Errorf("open position for %q: %w", agentID, ErrAgentUnknown)
	}

	pos := &model.Position{
		ID:        model.NewID(),
		AgentID:   agentID,
		SignalID:  spec.SignalID,
		Symbol:    spec.Symbol,
		Direction: spec.Direction,
		Entry:     spec.Entry,
		Targets:   append([]float64(nil), spec.Targets...),
		StopLoss:  spec.StopLoss,
		OpenedAt:  spec.OpenedAt,
		Status:    model.StatusOpen,
	}
	m.positions[pos.ID] = pos
	m.byAgent[agentID] = append(m.byAgent[agentID], pos.ID)
	return clonePosition(pos), nil
}

// ClosePosition transitions a position to CLOSED and settles its owner's
// account. Closed positions are terminal; a second close is an error.
func (m *Memory) ClosePosition(_ context.Context, positionID string, spec CloseSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[positionID]
	if !ok {
		return fmt.Errorf("close position %q: %w", positionID, ErrPositionNotFound)
	}
	if pos.Status == model.StatusClosed {
		return fmt.Errorf("close position %q: %w", positionID, ErrPositionClosed)
	}

	pos.Status = model.StatusClosed
	pos.CloseReason = spec.Reason
	pos.ClosePrice = spec.Price
	pos.ClosedAt = spec.ClosedAt

	account := m.accounts[pos.AgentID]
	realized := m.stake * pos.Return(spec.Price)
	account.Cash += realized
	account.RealizedPnL += realized
	account.Equity = account.Cash
	account.ClosedTrades++
	m.accounts[pos.AgentID] = account
	return nil
}

// ClosedPositions returns the closed history for one agent, oldest first.
func (m *Memory) ClosedPositions(agentID string) []model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Position
	for _, posID := range m.byAgent[agentID] {
		if pos := m.positions[posID]; pos.Status == model.StatusClosed {
			out = append(out, clonePosition(pos))
		}
	}
	return out
}

func clonePosition(p *model.Position) model.Position {
	out := *p
	out.Targets = append([]float64(nil), p.Targets...)
	return out
}
