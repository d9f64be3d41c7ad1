package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Subthedev/QuantumX-sub009/internal/assign"
	"github.com/Subthedev/QuantumX-sub009/internal/config"
	"github.com/Subthedev/QuantumX-sub009/internal/events"
	"github.com/Subthedev/QuantumX-sub009/internal/metrics"
	"github.com/Subthedev/QuantumX-sub009/internal/model"
	"github.com/Subthedev/QuantumX-sub009/internal/monitor"
	"github.com/Subthedev/QuantumX-sub009/internal/ops"
	"github.com/Subthedev/QuantumX-sub009/internal/oracle"
	"github.com/Subthedev/QuantumX-sub009/internal/scheduler"
	"github.com/Subthedev/QuantumX-sub009/internal/store"
	"github.com/Subthedev/QuantumX-sub009/internal/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the arena config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := util.NewLogger("arena", "info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger("arena", cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agents := make([]model.Agent, 0, len(cfg.Agents))
	for _, spec := range cfg.Agents {
		agents = append(agents, model.Agent{ID: spec.ID, Name: spec.Name, StrategyPool: spec.StrategyPool})
	}
	gateway := store.NewMemory(agents, cfg.Arena.StartingCash, cfg.Arena.StakePerTrade)

	client := oracle.NewHTTPClient(cfg.Oracle.BaseURL, cfg.Oracle.OracleTimeout(), log)
	fetcher := oracle.NewFetcher(client, log,
		oracle.WithAttempts(cfg.Oracle.Attempts),
		oracle.WithBackoff(
			time.Duration(cfg.Oracle.BackoffMinMs)*time.Millisecond,
			time.Duration(cfg.Oracle.BackoffMaxMs)*time.Millisecond,
		),
	)

	bus := events.NewBus(log)
	hub := events.NewHub(log)
	go hub.Run(ctx, bus.Subscribe(256))

	coordinator := assign.New(log, gateway, bus, agents)

	tiers := make([]scheduler.TierSpec, 0, len(cfg.Scheduler.Tiers))
	for _, tier := range cfg.Scheduler.Tiers {
		tiers = append(tiers, scheduler.TierSpec{ID: tier.ID, Interval: time.Duration(tier.IntervalSec) * time.Second})
	}
	sched := scheduler.New(log, tiers, time.Duration(cfg.Scheduler.SignalTTLSec)*time.Second)

	mon := monitor.New(log, gateway, fetcher, bus, agents,
		monitor.WithInterval(time.Duration(cfg.Monitor.ScanIntervalMs)*time.Millisecond),
		monitor.WithMaxHold(time.Duration(cfg.Monitor.MaxHoldHours)*time.Hour),
	)
	go func() {
		if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("monitor stopped")
			cancel()
		}
	}()

	opsServer := ops.Serve(cfg.App.OpsAddr, ops.New(log, gateway, agents, sched, mon, hub, sched.Submit))
	log.Info().Str("addr", cfg.App.OpsAddr).Msg("ops up")

	tickEvery := time.Duration(cfg.Scheduler.TickMs) * time.Millisecond
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	log.Info().Int("agents", len(agents)).Int("tiers", len(tiers)).Msg("arena engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			coordinator.Wait()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = opsServer.Shutdown(shutdownCtx)
			shutdownCancel()
			return
		case now := <-ticker.C:
			for _, sig := range sched.Tick(now) {
				bus.Publish(events.Event{
					Type:       events.TypeSignalReleased,
					Tier:       sig.Tier,
					SignalID:   sig.ID,
					Symbol:     sig.Symbol,
					Direction:  string(sig.Direction),
					Confidence: sig.Confidence,
				})
				coordinator.OnSignal(ctx, sig)
			}
		}
	}
}
