package config

import (
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "arena-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if len(cfg.Agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(cfg.Agents))
	}
	if cfg.Agents[0].ID != "agent-1" || cfg.Agents[0].Name != "Athena" {
		t.Fatalf("unexpected first agent: %+v", cfg.Agents[0])
	}
	if cfg.Arena.StartingCash != 10000 {
		t.Fatalf("unexpected starting cash: %.2f", cfg.Arena.StartingCash)
	}
	if cfg.Arena.StakePerTrade != 1000 {
		t.Fatalf("unexpected stake per trade: %.2f", cfg.Arena.StakePerTrade)
	}
	if cfg.Oracle.BaseURL != "http://localhost:9800" {
		t.Fatalf("unexpected oracle base url: %s", cfg.Oracle.BaseURL)
	}
	if cfg.Oracle.Attempts != 4 {
		t.Fatalf("unexpected oracle attempts: %d", cfg.Oracle.Attempts)
	}
	if len(cfg.Scheduler.Tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(cfg.Scheduler.Tiers))
	}
	if cfg.Scheduler.Tiers[0].ID != "elite" || cfg.Scheduler.Tiers[0].IntervalSec != 2880 {
		t.Fatalf("unexpected elite tier: %+v", cfg.Scheduler.Tiers[0])
	}
	if cfg.Scheduler.SignalTTLSec != 900 {
		t.Fatalf("unexpected signal ttl: %d", cfg.Scheduler.SignalTTLSec)
	}
	if cfg.Monitor.ScanIntervalMs != 5000 {
		t.Fatalf("unexpected scan interval: %d", cfg.Monitor.ScanIntervalMs)
	}
	if cfg.Monitor.MaxHoldHours != 24 {
		t.Fatalf("unexpected max hold: %d", cfg.Monitor.MaxHoldHours)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join("testdata", "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsDuplicateAgents(t *testing.T) {
	cfg := &Config{
		Agents: []AgentSpec{{ID: "a"}, {ID: "a"}},
	}
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected duplicate agent error")
	}
}

func TestValidateRejectsBadTier(t *testing.T) {
	cfg := &Config{
		Agents:    []AgentSpec{{ID: "a"}},
		Scheduler: Scheduler{Tiers: []Tier{{ID: "elite", IntervalSec: 0}}},
	}
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected tier interval error")
	}
}
