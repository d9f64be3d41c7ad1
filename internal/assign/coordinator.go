// Package assign matches released signals to agent slots and guarantees each
// agent holds at most one open position, whatever the signal arrival
// concurrency looks like.
package assign

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Subthedev/QuantumX-sub009/internal/events"
	"github.com/Subthedev/QuantumX-sub009/internal/metrics"
	"github.com/Subthedev/QuantumX-sub009/internal/model"
	"github.com/Subthedev/QuantumX-sub009/internal/store"
)

// Result classifies what OnSignal did with a signal.
type Result string

const (
	// Dispatched means the target agent's slot was claimed and the position
	// open is in flight. The open itself completes asynchronously.
	Dispatched Result = "DISPATCHED"
	// SkippedLowRank means the signal fell outside the top-N pool.
	SkippedLowRank Result = "SKIPPED_LOW_RANK"
	// SkippedLocked means another assignment for the target agent is in flight.
	SkippedLocked Result = "SKIPPED_LOCKED"
	// SkippedAgentBusy means the target agent already holds an open position.
	SkippedAgentBusy Result = "SKIPPED_AGENT_BUSY"
	// Failed means the busy check against the store errored.
	Failed Result = "FAILED"
)

// Outcome reports the terminal dispatch decision for one signal.
type Outcome struct {
	Result  Result
	AgentID string
	Rank    int
}

// Coordinator ranks the active signal pool and maps ranks to agent slots.
// The per-agent mutexes are the only contended shared state in the arena.
type Coordinator struct {
	log    zerolog.Logger
	store  store.Gateway
	events *events.Bus
	agents []model.Agent
	locks  map[string]*sync.Mutex
	now    func() time.Time

	mu   sync.Mutex
	pool []model.Signal

	wg sync.WaitGroup
}

// Option configures Coordinator construction parameters.
type Option func(*Coordinator)

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New builds a coordinator over the fixed agent roster. Slot order follows
// roster order: rank 1 maps to agents[0], and so on.
func New(log zerolog.Logger, gateway store.Gateway, bus *events.Bus, agents []model.Agent, opts ...Option) *Coordinator {
	c := &Coordinator{
		log:    log,
		store:  gateway,
		events: bus,
		agents: append([]model.Agent(nil), agents...),
		locks:  make(map[string]*sync.Mutex, len(agents)),
		now:    time.Now,
	}
	for _, agent := range agents {
		c.locks[agent.ID] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSignal merges sig into the active pool, ranks it, and either dispatches
// a position open to the rank's agent slot or skips. Dispatching never waits
// for the open to complete: the store write runs as its own goroutine and the
// agent lock is released when that write finishes, success or not.
func (c *Coordinator) OnSignal(ctx context.Context, sig model.Signal) Outcome {
	now := c.now()
	rank := c.merge(sig, now)
	if rank < 1 || rank > len(c.agents) {
		return c.skip(sig, Outcome{Result: SkippedLowRank, Rank: rank})
	}

	agent := c.agents[rank-1]
	lock := c.locks[agent.ID]
	if !lock.TryLock() {
		return c.skip(sig, Outcome{Result: SkippedLocked, AgentID: agent.ID, Rank: rank})
	}

	open, err := c.store.BatchGetOpenPositions(ctx, []string{agent.ID})
	if err != nil {
		lock.Unlock()
		c.log.Error().Err(err).Str("agent", agent.ID).Msg("busy check failed")
		return Outcome{Result: Failed, AgentID: agent.ID, Rank: rank}
	}
	if len(open[agent.ID]) > 0 {
		lock.Unlock()
		return c.skip(sig, Outcome{Result: SkippedAgentBusy, AgentID: agent.ID, Rank: rank})
	}

	c.wg.Add(1)
	openCtx := context.WithoutCancel(ctx)
	go func() {
		defer c.wg.Done()
		defer lock.Unlock()
		c.open(openCtx, agent, sig, now)
	}()

	return Outcome{Result: Dispatched, AgentID: agent.ID, Rank: rank}
}

// Wait joins every in-flight position open. Used on shutdown and in tests.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) open(ctx context.Context, agent model.Agent, sig model.Signal, now time.Time) {
	pos, err := c.store.OpenPosition(ctx, agent.ID, store.OpenSpec{
		SignalID:  sig.ID,
		Symbol:    sig.Symbol,
		Direction: sig.Direction,
		Entry:     sig.Entry,
		Targets:   sig.Targets,
		StopLoss:  sig.StopLoss,
		OpenedAt:  now,
	})
	if err != nil {
		// Not opened; the slot frees on unlock and a later signal retries
		// logically equivalent work.
		c.log.Error().Err(err).Str("agent", agent.ID).Str("symbol", sig.Symbol).Msg("position open failed")
		return
	}

	metrics.PositionsOpened.WithLabelValues(agent.ID).Inc()
	c.events.Publish(events.Event{
		Type:       events.TypePositionOpened,
		AgentID:    agent.ID,
		SignalID:   sig.ID,
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Direction:  string(pos.Direction),
		Price:      pos.Entry,
		Confidence: sig.Confidence,
	})
	c.log.Info().
		Str("agent", agent.ID).
		Str("position", pos.ID).
		Str("symbol", pos.Symbol).
		Str("direction", string(pos.Direction)).
		Float64("entry", pos.Entry).
		Msg("position opened")
}

// merge inserts sig into the active pool, supersedes older candidates for
// the same (symbol, direction), prunes expired entries, and returns sig's
// 1-based confidence rank. Returns 0 when sig itself was superseded.
// Dispatched signals stay pooled until expiry so ranks remain positional
// over the whole active pool, not sticky to individual signals.
func (c *Coordinator) merge(sig model.Signal, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.pool[:0]
	for _, existing := range c.pool {
		if existing.Expired(now) {
			continue
		}
		kept = append(kept, existing)
	}
	c.pool = kept

	replaced := false
	for i, existing := range c.pool {
		if existing.Key() != sig.Key() {
			continue
		}
		if existing.CreatedAt.After(sig.CreatedAt) {
			return 0
		}
		c.pool[i] = sig
		replaced = true
		break
	}
	if !replaced {
		c.pool = append(c.pool, sig)
	}

	sort.SliceStable(c.pool, func(i, j int) bool {
		if c.pool[i].Confidence != c.pool[j].Confidence {
			return c.pool[i].Confidence > c.pool[j].Confidence
		}
		return c.pool[i].CreatedAt.Before(c.pool[j].CreatedAt)
	})
	for i, pooled := range c.pool {
		if pooled.ID == sig.ID {
			return i + 1
		}
	}
	return 0
}

func (c *Coordinator) skip(sig model.Signal, outcome Outcome) Outcome {
	metrics.AssignmentsSkipped.WithLabelValues(string(outcome.Result)).Inc()
	c.events.Publish(events.Event{
		Type:       events.TypeAssignmentSkipped,
		AgentID:    outcome.AgentID,
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		Direction:  string(sig.Direction),
		Reason:     string(outcome.Result),
		Confidence: sig.Confidence,
	})
	c.log.Debug().
		Str("symbol", sig.Symbol).
		Str("agent", outcome.AgentID).
		Int("rank", outcome.Rank).
		Str("reason", string(outcome.Result)).
		Msg("assignment skipped")
	return outcome
}
