// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	OpsAddr     string `yaml:"ops_addr"`
	LogLevel    string `yaml:"log_level"`
}

// AgentSpec declares one roster entry. The roster is fixed for the process lifetime.
type AgentSpec struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	StrategyPool string `yaml:"strategy_pool"`
}

// Arena groups the simulated-account knobs shared by every agent.
type Arena struct {
	StartingCash  float64 `yaml:"starting_cash"`
	StakePerTrade float64 `yaml:"stake_per_trade"`
}

// Oracle describes the price data source and the retry envelope layered on it.
type Oracle struct {
	BaseURL      string `yaml:"base_url"`
	TimeoutMs    int    `yaml:"timeout_ms"`
	Attempts     int    `yaml:"attempts"`
	BackoffMinMs int    `yaml:"backoff_min_ms"`
	BackoffMaxMs int    `yaml:"backoff_max_ms"`
}

// Tier configures one subscriber class and its release cadence.
type Tier struct {
	ID          string `yaml:"id"`
	IntervalSec int    `yaml:"interval_secs"`
}

// Scheduler bundles tier definitions with the engine tick cadence.
type Scheduler struct {
	Tiers        []Tier `yaml:"tiers"`
	TickMs       int    `yaml:"tick_ms"`
	SignalTTLSec int    `yaml:"signal_ttl_secs"`
}

// Monitor controls the open-position scan loop.
type Monitor struct {
	ScanIntervalMs int `yaml:"scan_interval_ms"`
	MaxHoldHours   int `yaml:"max_hold_hours"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App         `yaml:"app"`
	Agents    []AgentSpec `yaml:"agents"`
	Arena     Arena       `yaml:"arena"`
	Oracle    Oracle      `yaml:"oracle"`
	Scheduler Scheduler   `yaml:"scheduler"`
	Monitor   Monitor     `yaml:"monitor"`
}

// OracleTimeout returns the HTTP client timeout with a sane floor.
func (o Oracle) OracleTimeout() time.Duration {
	if o.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("config: at least one agent required")
	}
	seen := make(map[string]struct{}, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("config: agent with empty id")
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("config: duplicate agent id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	tiers := make(map[string]struct{}, len(c.Scheduler.Tiers))
	for _, tier := range c.Scheduler.Tiers {
		if tier.ID == "" {
			return fmt.Errorf("config: tier with empty id")
		}
		if _, dup := tiers[tier.ID]; dup {
			return fmt.Errorf("config: duplicate tier id %q", tier.ID)
		}
		if tier.IntervalSec <= 0 {
			return fmt.Errorf("config: tier %q needs a positive interval", tier.ID)
		}
		tiers[tier.ID] = struct{}{}
	}
	return nil
}
