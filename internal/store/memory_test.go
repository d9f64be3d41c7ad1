package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Subthedev/QuantumX-sub009/internal/model"
)

var roster = []model.Agent{
	{ID: "agent-1", Name: "Athena"},
	{ID: "agent-2", Name: "Boreas"},
}

func openSpec(symbol string) OpenSpec {
	return OpenSpec{
		SignalID:  model.NewID(),
		Symbol:    symbol,
		Direction: model.Long,
		Entry:     100,
		Targets:   []float64{110},
		StopLoss:  95,
		OpenedAt:  time.Now(),
	}
}

func TestOpenAndCloseSettlesAccount(t *testing.T) {
	mem := NewMemory(roster, 10000, 1000)
	ctx := context.Background()

	pos, err := mem.OpenPosition(ctx, "agent-1", openSpec("BTC"))
	if err != nil {
		t.Fatalf("OpenPosition returned error: %v", err)
	}
	if pos.Status != model.StatusOpen {
		t.Fatalf("expected OPEN status, got %s", pos.Status)
	}

	open, err := mem.BatchGetOpenPositions(ctx, []string{"agent-1", "agent-2"})
	if err != nil {
		t.Fatalf("BatchGetOpenPositions returned error: %v", err)
	}
	if len(open["agent-1"]) != 1 || len(open["agent-2"]) != 0 {
		t.Fatalf("unexpected open position counts: %+v", open)
	}

	// +10% on a 1000 stake realizes +100.
	if err := mem.ClosePosition(ctx, pos.ID, CloseSpec{Reason: model.CloseTakeProfit, Price: 110, ClosedAt: time.Now()}); err != nil {
		t.Fatalf("ClosePosition returned error: %v", err)
	}

	accounts, err := mem.BatchGetAccounts(ctx, []string{"agent-1"})
	if err != nil {
		t.Fatalf("BatchGetAccounts returned error: %v", err)
	}
	account := accounts["agent-1"]
	if math.Abs(account.Cash-10100) > 1e-9 {
		t.Fatalf("expected cash 10100, got %.2f", account.Cash)
	}
	if math.Abs(account.RealizedPnL-100) > 1e-9 {
		t.Fatalf("expected realized pnl 100, got %.2f", account.RealizedPnL)
	}
	if account.ClosedTrades != 1 {
		t.Fatalf("expected 1 closed trade, got %d", account.ClosedTrades)
	}

	open, err = mem.BatchGetOpenPositions(ctx, []string{"agent-1"})
	if err != nil {
		t.Fatalf("BatchGetOpenPositions returned error: %v", err)
	}
	if len(open["agent-1"]) != 0 {
		t.Fatalf("expected no open positions after close")
	}

	closed := mem.ClosedPositions("agent-1")
	if len(closed) != 1 || closed[0].CloseReason != model.CloseTakeProfit {
		t.Fatalf("unexpected closed history: %+v", closed)
	}
}

func TestShortCloseSettlesInverted(t *testing.T) {
	mem := NewMemory(roster, 10000, 1000)
	ctx := context.Background()

	spec := openSpec("ETH")
	spec.Direction = model.Short
	pos, err := mem.OpenPosition(ctx, "agent-1", spec)
	if err != nil {
		t.Fatalf("OpenPosition returned error: %v", err)
	}

	// Short from 100 closed at 90 is +10%.
	if err := mem.ClosePosition(ctx, pos.ID, CloseSpec{Reason: model.CloseTakeProfit, Price: 90, ClosedAt: time.Now()}); err != nil {
		t.Fatalf("ClosePosition returned error: %v", err)
	}
	accounts, _ := mem.BatchGetAccounts(ctx, []string{"agent-1"})
	if math.Abs(accounts["agent-1"].RealizedPnL-100) > 1e-9 {
		t.Fatalf("expected +100 realized on short win, got %.2f", accounts["agent-1"].RealizedPnL)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	mem := NewMemory(roster, 10000, 1000)
	ctx := context.Background()

	pos, err := mem.OpenPosition(ctx, "agent-1", openSpec("BTC"))
	if err != nil {
		t.Fatalf("OpenPosition returned error: %v", err)
	}
	if err := mem.ClosePosition(ctx, pos.ID, CloseSpec{Reason: model.CloseStopLoss, Price: 95, ClosedAt: time.Now()}); err != nil {
		t.Fatalf("first close returned error: %v", err)
	}
	err = mem.ClosePosition(ctx, pos.ID, CloseSpec{Reason: model.CloseManual, Price: 90, ClosedAt: time.Now()})
	if !errors.Is(err, ErrPositionClosed) {
		t.Fatalf("expected ErrPositionClosed, got %v", err)
	}

	closed := mem.ClosedPositions("agent-1")
	if closed[0].CloseReason != model.CloseStopLoss || closed[0].ClosePrice != 95 {
		t.Fatalf("close fields mutated after terminal close: %+v", closed[0])
	}
}

func TestUnknownAgentRejected(t *testing.T) {
	mem := NewMemory(roster, 10000, 1000)
	ctx := context.Background()

	if _, err := mem.OpenPosition(ctx, "ghost", openSpec("BTC")); !errors.Is(err, ErrAgentUnknown) {
		t.Fatalf("expected ErrAgentUnknown, got %v", err)
	}
	if _, err := mem.BatchGetAccounts(ctx, []string{"ghost"}); !errors.Is(err, ErrAgentUnknown) {
		t.Fatalf("expected ErrAgentUnknown, got %v", err)
	}
	if err := mem.ClosePosition(ctx, "nope", CloseSpec{}); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}
