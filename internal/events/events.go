// Package events fans engine activity out to UI consumers. Publishing is
// fire-and-forget: the engine never blocks on a slow or absent consumer.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Type enumerates the event kinds the arena emits.
type Type string

const (
	TypeSignalReleased    Type = "signal_released"
	TypePositionOpened    Type = "position_opened"
	TypePositionClosed    Type = "position_closed"
	TypeAssignmentSkipped Type = "assignment_skipped"
	TypeInvariantRepair   Type = "invariant_repair"
)

// Event is one engine notification, JSON-shaped for websocket delivery.
type Event struct {
	Type       Type      `json:"type"`
	At         time.Time `json:"at"`
	Tier       string    `json:"tier,omitempty"`
	AgentID    string    `json:"agent_id,omitempty"`
	SignalID   string    `json:"signal_id,omitempty"`
	PositionID string    `json:"position_id,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	Direction  string    `json:"direction,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Price      float64   `json:"price,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Stale      bool      `json:"stale,omitempty"`
}

// Bus delivers events to subscribers over buffered channels, dropping when a
// subscriber's buffer is full.
type Bus struct {
	log  zerolog.Logger
	mu   sync.Mutex
	subs []chan Event
}

// NewBus constructs an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscribe registers a new consumer channel with the given buffer size.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			b.log.Debug().Str("type", string(ev.Type)).Msg("event dropped, subscriber buffer full")
		}
	}
}
