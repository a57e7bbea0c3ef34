// Command reflexd runs the Antigravity reflex trading engine: it loads
// configuration, wires the broker bridge, risk governor, persistence sink,
// and event bus into a reflex engine, and serves it over HTTP/WebSocket until
// an interrupt or terminate signal arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/bridge"
	"github.com/antigravity-labs/reflex-engine/internal/config"
	"github.com/antigravity-labs/reflex-engine/internal/engine"
	"github.com/antigravity-labs/reflex-engine/internal/eventbus"
	"github.com/antigravity-labs/reflex-engine/internal/filter"
	"github.com/antigravity-labs/reflex-engine/internal/metrics"
	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/antigravity-labs/reflex-engine/internal/retry"
	"github.com/antigravity-labs/reflex-engine/internal/risk"
	"github.com/antigravity-labs/reflex-engine/internal/server"
	"github.com/antigravity-labs/reflex-engine/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log := newLogger(cfg)
	log.WithFields(logrus.Fields{"mode": cfg.Environment.Mode, "symbol": cfg.Symbol}).Info("starting reflexd")

	sink, err := buildSink(cfg)
	if err != nil {
		log.WithError(err).Error("failed to initialize storage sink")
		return 1
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.WithError(err).Warn("error closing storage sink")
		}
	}()

	br, err := buildBridge(cfg)
	if err != nil {
		log.WithError(err).Error("failed to initialize broker bridge")
		return 1
	}

	bus := eventbus.New(log.WithField("component", "eventbus"))
	mtx := metrics.New()
	retryClient := retry.NewClient(log.WithField("component", "retry"), retry.Config{
		MaxRetries:     cfg.Bridge.RetryAttempts,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Timeout:        cfg.Bridge.Timeout,
	})

	eng := engine.New(engine.Config{
		Symbol:      cfg.Symbol,
		FilterCfg:   filterConfigFrom(cfg),
		Governor:    risk.NewGovernor(riskConfigFrom(cfg)),
		Bridge:      br,
		RetryClient: retryClient,
		Bus:         bus,
		Sink:        sink,
		Metrics:     mtx,
		Log:         log.WithField("component", "engine"),
	})

	srv := server.New(server.Config{
		Port:        cfg.Server.Port,
		AuthToken:   cfg.Server.AuthToken,
		Engine:      eng,
		Bus:         bus,
		Metrics:     mtx,
		Log:         log.WithField("component", "server"),
		StatsPeriod: cfg.Server.StatsPeriod,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		return runStatsLoop(groupCtx, eng, bus, cfg.Server.StatsPeriod)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("reflexd exited with error")
		return 1
	}

	log.Info("reflexd stopped")
	return 0
}

// runStatsLoop publishes SERVER_STATS on the event bus at cfg.Server.StatsPeriod
// until ctx is cancelled.
func runStatsLoop(ctx context.Context, eng *engine.Engine, bus *eventbus.Bus, period time.Duration) error {
	if period <= 0 {
		period = 1 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			bus.Publish(models.Event{Type: models.EventServerStats, Time: time.Now(), Payload: eng.Stats()})
		}
	}
}

func newLogger(cfg *config.Config) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Environment.Mode == "live" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return logrus.NewEntry(log)
}

func filterConfigFrom(cfg *config.Config) filter.Config {
	return filter.Config{
		MaxSpread:        cfg.Confirm.MaxSpread,
		RequireZoneProbe: cfg.Confirm.RequireZoneProbe,
		MinZoneTicks:     cfg.Confirm.MinZoneTicks,
		ProbeLookback:    cfg.Confirm.ProbeLookback,
		RSIOverbought:    cfg.Confirm.RSIOverbought,
		RSIOversold:      cfg.Confirm.RSIOversold,
	}
}

func riskConfigFrom(cfg *config.Config) risk.Config {
	return risk.Config{
		MaxTradesPerDay:          cfg.Risk.MaxTradesPerDay,
		MaxConsecutiveFailures:   cfg.Risk.MaxConsecutiveFailures,
		CooldownSecsAfterFailure: cfg.Risk.CooldownSecsAfterFailure,
	}
}

func buildBridge(cfg *config.Config) (bridge.Bridge, error) {
	httpBridge, err := bridge.NewHTTPBridgeWithClient(cfg.Bridge.BaseURL, cfg.Bridge.APIKey, &http.Client{Timeout: cfg.Bridge.Timeout})
	if err != nil {
		return nil, err
	}
	if !cfg.Bridge.CircuitBreaker {
		return httpBridge, nil
	}
	return bridge.NewCircuitBreakerBridge(httpBridge), nil
}

func buildSink(cfg *config.Config) (storage.Sink, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return storage.NewPostgresSink(ctx, cfg.Storage.ConnString)
	default:
		return storage.NewJSONSink(cfg.Storage.Path)
	}
}
