// Package engine implements the reflex engine: the single coarse-locked state
// machine that ties the tick buffer, the confirmation filter, the risk
// governor, and the broker bridge together into one event-driven loop.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/bridge"
	"github.com/antigravity-labs/reflex-engine/internal/eventbus"
	"github.com/antigravity-labs/reflex-engine/internal/filter"
	"github.com/antigravity-labs/reflex-engine/internal/metrics"
	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/antigravity-labs/reflex-engine/internal/retry"
	"github.com/antigravity-labs/reflex-engine/internal/risk"
	"github.com/antigravity-labs/reflex-engine/internal/storage"
	"github.com/sirupsen/logrus"
)

// knownStates lists every ReflexState for metrics.SetEngineState's zeroing pass.
var knownStates = []string{
	string(models.StateDisarmed),
	string(models.StateArmed),
	string(models.StateFiring),
	string(models.StateInPosition),
}

// tickBufferCapacity must cover the widest lookback any filter layer inspects.
const tickBufferCapacity = 256

// Clock abstracts time.Now so tests can drive deterministic instants.
type Clock func() time.Time

// Engine is the reflex engine. A single mutex (mu) guards all mutable state;
// bridge dispatch calls are made with the lock released so a slow broker never
// stalls tick ingestion, then the lock is re-taken for a short critical section
// to apply the ack.
type Engine struct {
	mu sync.Mutex

	symbol    string
	buffer    *models.TickBuffer
	strategy  *models.ActiveStrategy
	position  *models.OpenPosition
	sm        *models.ReflexStateMachine
	filterCfg filter.Config
	governor  *risk.Governor

	bridge      bridge.Bridge
	retryClient *retry.Client
	bus         *eventbus.Bus
	sink        storage.Sink
	metrics     *metrics.Metrics
	log         *logrus.Entry
	now         Clock

	tickCount    int64
	tradeCount   int64
	lastTickTime time.Time
}

// Config bundles an Engine's dependencies and tunables.
type Config struct {
	Symbol      string
	FilterCfg   filter.Config
	Governor    *risk.Governor
	Bridge      bridge.Bridge
	RetryClient *retry.Client
	Bus         *eventbus.Bus
	Sink        storage.Sink
	Metrics     *metrics.Metrics // optional; nil disables metrics recording
	Log         *logrus.Entry
	Now         Clock // defaults to time.Now
}

// New constructs an Engine starting DISARMED with an empty tick buffer.
func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{
		symbol:      cfg.Symbol,
		buffer:      models.NewTickBuffer(tickBufferCapacity),
		sm:          models.NewReflexStateMachine(),
		filterCfg:   cfg.FilterCfg,
		governor:    cfg.Governor,
		bridge:      cfg.Bridge,
		retryClient: cfg.RetryClient,
		bus:         cfg.Bus,
		sink:        cfg.Sink,
		metrics:     cfg.Metrics,
		log:         cfg.Log,
		now:         cfg.Now,
	}
}

// recordState pushes the engine's current state into the metrics gauge vec, if
// metrics are wired in.
func (e *Engine) recordState(state models.ReflexState) {
	if e.metrics == nil {
		return
	}
	e.metrics.SetEngineState(string(state), knownStates)
}

// IngestStrategy arms the engine with a new strategy. Only valid from DISARMED
// or ARMED — a strategy arriving mid-fire or mid-position is rejected so the
// single-position invariant never has to reason about a pending replacement.
func (e *Engine) IngestStrategy(ctx context.Context, s models.ActiveStrategy) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	e.mu.Lock()
	state := e.sm.Current()
	// Idempotent by strategy_id: re-posting an unchanged strategy while already
	// armed with it is a no-op, per spec §6.
	if state == models.StateArmed && e.strategy != nil && e.strategy.StrategyID == s.StrategyID && *e.strategy == s {
		e.mu.Unlock()
		return nil
	}
	var condition string
	switch state {
	case models.StateDisarmed:
		condition = "strategy_ingested"
	case models.StateArmed:
		condition = "strategy_replaced"
	default:
		e.mu.Unlock()
		return fmt.Errorf("cannot accept strategy while engine is %s", state)
	}
	if err := e.sm.Transition(models.StateArmed, condition); err != nil {
		e.mu.Unlock()
		return err
	}
	e.strategy = &s
	e.buffer.Reset()
	e.lastTickTime = time.Time{}
	e.mu.Unlock()

	e.recordState(models.StateArmed)
	e.publish(models.EventStrategyUpdated, models.StrategyEventPayload{Strategy: &s, Reason: condition})
	if e.sink != nil {
		if err := e.sink.RecordStrategy(ctx, &s); err != nil {
			e.log.WithError(err).Warn("failed to persist strategy ingest")
		}
	}
	return nil
}

// Disarm clears the active strategy without firing.
func (e *Engine) Disarm(ctx context.Context, reason string) error {
	e.mu.Lock()
	if e.sm.Current() != models.StateArmed {
		e.mu.Unlock()
		return fmt.Errorf("cannot disarm from state %s", e.sm.Current())
	}
	if err := e.sm.Transition(models.StateDisarmed, "strategy_cleared"); err != nil {
		e.mu.Unlock()
		return err
	}
	prev := e.strategy
	e.strategy = nil
	e.mu.Unlock()

	e.recordState(models.StateDisarmed)
	e.publish(models.EventStrategyCleared, models.StrategyEventPayload{Strategy: prev, Reason: reason})
	return nil
}

// Snapshot returns a read-only view of the engine's current state, strategy,
// and position.
func (e *Engine) Snapshot() models.SnapshotPayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.SnapshotPayload{
		State:    e.sm.Current(),
		Strategy: e.strategy,
		Position: e.position,
	}
}

// Stats returns the counters surfaced on the periodic SERVER_STATS event.
func (e *Engine) Stats() models.ServerStatsPayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.governor.State(e.now())
	return models.ServerStatsPayload{
		State:       e.sm.Current(),
		TickCount:   e.tickCount,
		TradeCount:  e.tradeCount,
		IsKilled:    st.IsKilled,
		TradesToday: st.TradesToday,
	}
}

func (e *Engine) publish(t models.EventType, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(models.Event{Type: t, Time: e.now(), Payload: payload})
}
