// Package ops exposes the operational query surface: agent state, tier
// schedule status, monitor health, the signal ingest endpoint, and the
// websocket event stream.
package ops

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Subthedev/QuantumX-sub009/internal/events"
	"github.com/Subthedev/QuantumX-sub009/internal/model"
	"github.com/Subthedev/QuantumX-sub009/internal/monitor"
	"github.com/Subthedev/QuantumX-sub009/internal/scheduler"
	"github.com/Subthedev/QuantumX-sub009/internal/store"
)

// SignalSink receives ingested candidate signals (the scheduler in prod).
type SignalSink func(model.Signal)

// Server answers state queries and accepts candidate signals.
type Server struct {
	log    zerolog.Logger
	store  store.Gateway
	agents []model.Agent
	sched  *scheduler.Scheduler
	mon    *monitor.Monitor
	hub    *events.Hub
	sink   SignalSink
}

// New wires the ops server over the running components.
func New(log zerolog.Logger, gateway store.Gateway, agents []model.Agent, sched *scheduler.Scheduler, mon *monitor.Monitor, hub *events.Hub, sink SignalSink) *Server {
	return &Server{
		log:    log,
		store:  gateway,
		agents: append([]model.Agent(nil), agents...),
		sched:  sched,
		mon:    mon,
		hub:    hub,
		sink:   sink,
	}
}

// Router mounts every ops endpoint on a fresh mux.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /agents", s.handleAgents)
	mux.HandleFunc("GET /tiers", s.handleTiers)
	mux.HandleFunc("GET /monitor", s.handleMonitor)
	mux.HandleFunc("POST /signals", s.handleSubmitSignal)
	if s.hub != nil {
		mux.Handle("GET /events", s.hub)
	}
	return mux
}

// Serve starts the ops server on addr.
func Serve(addr string, s *Server) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

type agentView struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Status   string          `json:"status"`
	Position *model.Position `json:"position,omitempty"`
	Account  model.Account   `json:"account"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	ids := make([]string, 0, len(s.agents))
	for _, agent := range s.agents {
		ids = append(ids, agent.ID)
	}

	accounts, err := s.store.BatchGetAccounts(r.Context(), ids)
	if err != nil {
		s.fail(w, err, "read accounts")
		return
	}
	open, err := s.store.BatchGetOpenPositions(r.Context(), ids)
	if err != nil {
		s.fail(w, err, "read open positions")
		return
	}

	out := make([]agentView, 0, len(s.agents))
	for _, agent := range s.agents {
		view := agentView{
			ID:      agent.ID,
			Name:    agent.Name,
			Status:  "scanning",
			Account: accounts[agent.ID],
		}
		if positions := open[agent.ID]; len(positions) > 0 {
			pos := positions[0]
			view.Status = "in_position"
			view.Position = &pos
		}
		out = append(out, view)
	}
	s.respond(w, out)
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.sched.Status(time.Now()))
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.mon.Health())
}

type submitSignalRequest struct {
	Symbol       string    `json:"symbol"`
	Direction    string    `json:"direction"`
	Confidence   float64   `json:"confidence"`
	Entry        float64   `json:"entry"`
	Targets      []float64 `json:"targets"`
	StopLoss     float64   `json:"stop_loss"`
	Tier         string    `json:"tier,omitempty"`
	ExpiresInSec int       `json:"expires_in_secs,omitempty"`
}

func (s *Server) handleSubmitSignal(w http.ResponseWriter, r *http.Request) {
	var req submitSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	dir := model.Direction(req.Direction)
	switch {
	case req.Symbol == "":
		http.Error(w, "symbol required", http.StatusBadRequest)
		return
	case dir != model.Long && dir != model.Short:
		http.Error(w, "direction must be LONG or SHORT", http.StatusBadRequest)
		return
	case req.Entry <= 0 || req.StopLoss <= 0 || len(req.Targets) == 0:
		http.Error(w, "entry, stop_loss, and targets required", http.StatusBadRequest)
		return
	case req.Confidence < 0 || req.Confidence > 100:
		http.Error(w, "confidence must be within [0,100]", http.StatusBadRequest)
		return
	}

	now := time.Now()
	sig := model.Signal{
		ID:         model.NewID(),
		Symbol:     req.Symbol,
		Direction:  dir,
		Confidence: req.Confidence,
		Entry:      req.Entry,
		Targets:    req.Targets,
		StopLoss:   req.StopLoss,
		Tier:       req.Tier,
		CreatedAt:  now,
	}
	if req.ExpiresInSec > 0 {
		sig.ExpiresAt = now.Add(time.Duration(req.ExpiresInSec) * time.Second)
	}
	s.sink(sig)

	s.log.Info().Str("symbol", sig.Symbol).Str("direction", string(sig.Direction)).Float64("confidence", sig.Confidence).Msg("candidate signal accepted")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": sig.ID})
}

func (s *Server) respond(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("encode ops response")
	}
}

func (s *Server) fail(w http.ResponseWriter, err error, what string) {
	s.log.Error().Err(err).Msg(what + " failed")
	http.Error(w, what+" failed", http.StatusInternalServerError)
}
