package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Subthedev/QuantumX-sub009/internal/events"
	"github.com/Subthedev/QuantumX-sub009/internal/model"
	"github.com/Subthedev/QuantumX-sub009/internal/monitor"
	"github.com/Subthedev/QuantumX-sub009/internal/oracle"
	"github.com/Subthedev/QuantumX-sub009/internal/scheduler"
	"github.com/Subthedev/QuantumX-sub009/internal/store"
)

var roster = []model.Agent{
	{ID: "agent-1", Name: "Athena"},
	{ID: "agent-2", Name: "Boreas"},
}

type noPrices struct{}

func (noPrices) Snapshot(context.Context, []string) map[string]oracle.Quote { return nil }

func newServer(t *testing.T) (*Server, *store.Memory, *[]model.Signal) {
	t.Helper()
	mem := store.NewMemory(roster, 10000, 1000)
	sched := scheduler.New(zerolog.Nop(), []scheduler.TierSpec{{ID: "elite", Interval: time.Minute}}, 0)
	mon := monitor.New(zerolog.Nop(), mem, noPrices{}, events.NewBus(zerolog.Nop()), roster)

	var sunk []model.Signal
	srv := New(zerolog.Nop(), mem, roster, sched, mon, nil, func(sig model.Signal) {
		sunk = append(sunk, sig)
	})
	return srv, mem, &sunk
}

func TestAgentsEndpoint(t *testing.T) {
	srv, mem, _ := newServer(t)
	if _, err := mem.OpenPosition(context.Background(), "agent-1", store.OpenSpec{
		Symbol: "BTC", Direction: model.Long, Entry: 100, Targets: []float64{110}, StopLoss: 95, OpenedAt: time.Now(),
	}); err != nil {
		t.Fatalf("setup open failed: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agents", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var views []agentView
	if err := json.NewDecoder(rec.Body).Decode(&views); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(views))
	}
	if views[0].Status != "in_position" || views[0].Position == nil {
		t.Fatalf("expected agent-1 in position, got %+v", views[0])
	}
	if views[1].Status != "scanning" || views[1].Position != nil {
		t.Fatalf("expected agent-2 scanning, got %+v", views[1])
	}
	if views[1].Account.Cash != 10000 {
		t.Fatalf("unexpected account cash: %.2f", views[1].Account.Cash)
	}
}

func TestTiersEndpoint(t *testing.T) {
	srv, _, _ := newServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tiers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "elite") {
		t.Fatalf("tier status missing: %s", rec.Body.String())
	}
}

func TestMonitorEndpoint(t *testing.T) {
	srv, _, _ := newServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monitor", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "closed_by_reason") {
		t.Fatalf("monitor health missing: %s", rec.Body.String())
	}
}

func TestSubmitSignal(t *testing.T) {
	srv, _, sunk := newServer(t)

	body := `{"symbol":"BTC","direction":"LONG","confidence":88,"entry":44000,"targets":[44500],"stop_loss":43500}`
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if len(*sunk) != 1 {
		t.Fatalf("expected one sunk signal, got %d", len(*sunk))
	}
	if (*sunk)[0].Symbol != "BTC" || (*sunk)[0].Confidence != 88 {
		t.Fatalf("unexpected signal: %+v", (*sunk)[0])
	}
}

func TestSubmitSignalValidation(t *testing.T) {
	srv, _, sunk := newServer(t)

	cases := []string{
		`{"direction":"LONG","confidence":88,"entry":1,"targets":[2],"stop_loss":0.5}`,
		`{"symbol":"BTC","direction":"SIDEWAYS","confidence":88,"entry":1,"targets":[2],"stop_loss":0.5}`,
		`{"symbol":"BTC","direction":"LONG","confidence":101,"entry":1,"targets":[2],"stop_loss":0.5}`,
		`{"symbol":"BTC","direction":"LONG","confidence":88,"entry":1,"stop_loss":0.5}`,
		`not json`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", body, rec.Code)
		}
	}
	if len(*sunk) != 0 {
		t.Fatalf("invalid payloads must not reach the sink")
	}
}
