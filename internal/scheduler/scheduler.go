// Package scheduler owns the tiered signal-release cadence. All tier buffers
// and last-release timestamps live behind one instance; nothing else mutates
// them.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Subthedev/QuantumX-sub009/internal/metrics"
	"github.com/Subthedev/QuantumX-sub009/internal/model"
)

// TierSpec declares one subscriber tier and its release interval.
type TierSpec struct {
	ID       string
	Interval time.Duration
}

// TierStatus is the operational view of one tier.
type TierStatus struct {
	Tier          string        `json:"tier"`
	Interval      time.Duration `json:"interval"`
	NextReleaseIn time.Duration `json:"next_release_in"`
	Buffered      int           `json:"buffered"`
}

type tierState struct {
	spec   TierSpec
	last   time.Time
	buffer []model.Signal // insertion order, deduped per (symbol, direction)
}

// Scheduler buffers candidate signals per tier and releases the best one once
// a tier's interval has elapsed.
type Scheduler struct {
	log zerolog.Logger
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	tiers []*tierState
}

// Option configures Scheduler construction parameters.
type Option func(*Scheduler)

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New builds a scheduler for the given tiers. ttl bounds how long an
// unreleased candidate stays eligible; zero means candidates never expire
// from the buffer on their own (their own ExpiresAt still applies).
func New(log zerolog.Logger, tiers []TierSpec, ttl time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		log: log,
		ttl: ttl,
		now: time.Now,
	}
	for _, spec := range tiers {
		s.tiers = append(s.tiers, &tierState{spec: spec})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit buffers a candidate for every eligible tier. A candidate for the
// same (symbol, direction) replaces an older buffered one instead of
// appending; an older duplicate is ignored.
func (s *Scheduler) Submit(sig model.Signal) {
	now := s.now()
	if sig.ID == "" {
		sig.ID = model.NewID()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = now
	}
	if sig.ExpiresAt.IsZero() && s.ttl > 0 {
		sig.ExpiresAt = sig.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tier := range s.tiers {
		if sig.Tier != "" && sig.Tier != tier.spec.ID {
			continue
		}
		s.buffer(tier, sig)
		metrics.SignalsBuffered.WithLabelValues(tier.spec.ID).Set(float64(len(tier.buffer)))
	}
}

func (s *Scheduler) buffer(tier *tierState, sig model.Signal) {
	for i, existing := range tier.buffer {
		if existing.Key() != sig.Key() {
			continue
		}
		if sig.CreatedAt.Before(existing.CreatedAt) {
			s.log.Debug().Str("tier", tier.spec.ID).Str("symbol", sig.Symbol).Msg("stale duplicate candidate ignored")
			return
		}
		tier.buffer[i] = sig
		return
	}
	tier.buffer = append(tier.buffer, sig)
}

// ShouldRelease reports whether the tier's interval has elapsed since its
// last release. Cheap and safe to call on every tick.
func (s *Scheduler) ShouldRelease(tierID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tier := range s.tiers {
		if tier.spec.ID == tierID {
			return elapsed(tier, now)
		}
	}
	return false
}

// Tick releases at most one signal per tier whose interval has elapsed. A
// tier with an empty buffer is left untouched: its lastRelease does not
// advance, so the next candidate releases as soon as it appears.
func (s *Scheduler) Tick(now time.Time) []model.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []model.Signal
	for _, tier := range s.tiers {
		s.prune(tier, now)
		if !elapsed(tier, now) || len(tier.buffer) == 0 {
			metrics.SignalsBuffered.WithLabelValues(tier.spec.ID).Set(float64(len(tier.buffer)))
			continue
		}

		best := s.take(tier)
		best.Tier = tier.spec.ID
		tier.last = now
		released = append(released, best)

		metrics.SignalsReleased.WithLabelValues(tier.spec.ID).Inc()
		metrics.SignalsBuffered.WithLabelValues(tier.spec.ID).Set(float64(len(tier.buffer)))
		s.log.Info().
			Str("tier", tier.spec.ID).
			Str("symbol", best.Symbol).
			Str("direction", string(best.Direction)).
			Float64("confidence", best.Confidence).
			Msg("signal released")
	}
	return released
}

// take removes and returns the highest-confidence candidate; ties resolve to
// the earlier creation timestamp.
func (s *Scheduler) take(tier *tierState) model.Signal {
	best := 0
	for i := 1; i < len(tier.buffer); i++ {
		cand, cur := tier.buffer[i], tier.buffer[best]
		if cand.Confidence > cur.Confidence ||
			(cand.Confidence == cur.Confidence && cand.CreatedAt.Before(cur.CreatedAt)) {
			best = i
		}
	}
	sig := tier.buffer[best]
	tier.buffer = append(tier.buffer[:best], tier.buffer[best+1:]...)
	return sig
}

func (s *Scheduler) prune(tier *tierState, now time.Time) {
	kept := tier.buffer[:0]
	for _, sig := range tier.buffer {
		if sig.Expired(now) {
			s.log.Debug().Str("tier", tier.spec.ID).Str("symbol", sig.Symbol).Msg("buffered candidate expired")
			continue
		}
		kept = append(kept, sig)
	}
	tier.buffer = kept
}

// Status reports the schedule state of every tier, sorted by tier id.
func (s *Scheduler) Status(now time.Time) []TierStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TierStatus, 0, len(s.tiers))
	for _, tier := range s.tiers {
		var next time.Duration
		if !tier.last.IsZero() {
			if wait := tier.spec.Interval - now.Sub(tier.last); wait > 0 {
				next = wait
			}
		}
		out = append(out, TierStatus{
			Tier:          tier.spec.ID,
			Interval:      tier.spec.Interval,
			NextReleaseIn: next,
			Buffered:      len(tier.buffer),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out
}

func elapsed(tier *tierState, now time.Time) bool {
	if tier.last.IsZero() {
		return true
	}
	return now.Sub(tier.last) >= tier.spec.Interval
}
