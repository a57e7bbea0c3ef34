package engine

import (
	"context"
	"strings"

	"github.com/antigravity-labs/reflex-engine/internal/filter"
	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/antigravity-labs/reflex-engine/internal/risk"
)

// IngestTick pushes a tick into the buffer and, if armed, runs it through the
// confirmation filter. Ticks are buffered unconditionally regardless of state
// (P3: the buffer is always live); the filter itself only ever runs while
// CanFire() is true. Per spec §3, a crossed tick (ask < bid) or a tick whose
// time precedes the last accepted tick's time is discarded before it ever
// reaches the buffer or the filter.
func (e *Engine) IngestTick(ctx context.Context, t models.Tick) error {
	e.mu.Lock()
	if !t.Valid() {
		state := e.sm.Current()
		e.mu.Unlock()
		e.publish(models.EventDebug, models.DebugEventPayload{State: state, Reason: "crossed_tick"})
		return nil
	}
	if !e.lastTickTime.IsZero() && t.Time.Before(e.lastTickTime) {
		state := e.sm.Current()
		e.mu.Unlock()
		e.publish(models.EventDebug, models.DebugEventPayload{State: state, Reason: "out_of_order_tick"})
		return nil
	}
	e.lastTickTime = t.Time

	if e.metrics != nil {
		e.metrics.TicksTotal.Inc()
	}
	e.tickCount++
	// Snapshot the window preceding this tick before pushing it, so the filter
	// sees `recent` as strictly prior history and `t` as the current tick — the
	// contract filter.Evaluate documents.
	recent := e.buffer.Recent(e.filterCfg.ProbeLookback)
	e.buffer.Push(t)

	if e.sm.Current() == models.StateInPosition {
		pos := e.position
		e.mu.Unlock()
		if pos != nil {
			if e.metrics != nil {
				e.metrics.OpenPositionPnL.Set(models.ProfitPipsFor(pos.Direction, pos.EntryPrice, t.Mid()))
			}
			e.checkOpenPositionExits(ctx, *pos, t)
		}
		return nil
	}

	if !e.sm.CanFire() || e.strategy == nil {
		e.mu.Unlock()
		return nil
	}

	if e.strategy.Expired(e.now()) {
		expired := e.strategy
		_ = e.sm.Transition(models.StateDisarmed, "strategy_cleared")
		e.strategy = nil
		e.mu.Unlock()
		e.publish(models.EventStrategyCleared, models.StrategyEventPayload{Strategy: expired, Reason: "expired"})
		return nil
	}

	strategy := *e.strategy
	e.mu.Unlock()

	decision := filter.Evaluate(strategy, t, recent, e.filterCfg)
	if e.metrics != nil {
		e.metrics.FilterDecisions.WithLabelValues(strings.ToLower(string(decision.Outcome)), decision.Reason).Inc()
	}
	switch decision.Outcome {
	case filter.Fire:
		return e.handleFire(ctx, strategy, t)
	case filter.Wait:
		e.publish(models.EventDebug, models.DebugEventPayload{State: models.StateArmed, Reason: decision.Reason})
	case filter.Reject:
		e.publish(models.EventDebug, models.DebugEventPayload{State: models.StateArmed, Reason: decision.Reason})
	}
	return nil
}

// handleFire transitions ARMED -> FIRING, dispatches to the broker bridge with
// the lock released, then re-enters a short critical section to apply the ack.
func (e *Engine) handleFire(ctx context.Context, strategy models.ActiveStrategy, t models.Tick) error {
	now := e.now()

	e.mu.Lock()
	if e.strategy == nil || e.strategy.StrategyID != strategy.StrategyID {
		// Strategy was replaced or cleared between filter evaluation and here.
		e.mu.Unlock()
		return nil
	}
	decision := e.governor.Check(now)
	if !decision.Allowed {
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.RiskBlocks.WithLabelValues(decision.Reason).Inc()
		}
		e.publish(models.EventTradeBlocked, models.TradeEventPayload{Reason: decision.Reason})
		return nil
	}
	if err := e.sm.Transition(models.StateFiring, "fire"); err != nil {
		e.mu.Unlock()
		return err
	}
	e.strategy = nil
	e.governor.RecordFire(now)
	e.mu.Unlock()
	e.recordState(models.StateFiring)

	rec := models.NewTradeRecord(strategy, t.Mid(), now)
	e.publish(models.EventTradeFiring, models.TradeEventPayload{Record: &rec})

	cmd := bridgeFireCommand(strategy, t)
	var ack *bridgeAck
	err := e.retryClient.Do(ctx, "bridge dispatch", func(ctx context.Context) error {
		a, err := e.bridge.Dispatch(ctx, cmd)
		if err != nil {
			return err
		}
		ack = (*bridgeAck)(a)
		return nil
	})

	e.applyFireAck(ctx, strategy, rec, t, ack, err)
	return nil
}

func (e *Engine) applyFireAck(ctx context.Context, strategy models.ActiveStrategy, rec models.TradeRecord, t models.Tick, ack *bridgeAck, dispatchErr error) {
	now := e.now()

	e.mu.Lock()
	confirmed := dispatchErr == nil && ack != nil && ack.Confirmed
	if confirmed {
		_ = e.sm.Transition(models.StateInPosition, "bridge_confirmed")
		pos := &models.OpenPosition{
			PositionID:   ack.BrokerTicket,
			StrategyID:   strategy.StrategyID,
			Symbol:       strategy.Symbol,
			Direction:    strategy.Direction,
			EntryPrice:   t.Mid(),
			LotSize:      strategy.LotSize,
			TakeProfit:   strategy.TakeProfit,
			StopLoss:     strategy.StopLoss,
			BrokerTicket: ack.BrokerTicket,
			OpenedAt:     now,
			OpposingZone: strategy.OpposingZone,
		}
		e.position = pos
		e.tradeCount++
		e.governor.RecordOutcome(risk.Confirmed, now)

		rec.Status = models.TradeStatusConfirmed
		rec.BrokerTicket = ack.BrokerTicket
		e.mu.Unlock()

		e.recordState(models.StateInPosition)
		if e.metrics != nil {
			e.metrics.TradesFired.WithLabelValues("confirmed").Inc()
			e.metrics.OpenPositionPnL.Set(0)
		}
		e.publish(models.EventPositionOpened, models.PositionEventPayload{Position: pos})
		e.persistTrade(ctx, rec)
		return
	}

	_ = e.sm.Transition(models.StateDisarmed, "bridge_failed")
	e.governor.RecordOutcome(risk.Failed, now)
	killed := e.governor.State(now).IsKilled
	killReason := e.governor.State(now).KillReason
	e.mu.Unlock()

	e.recordState(models.StateDisarmed)
	if e.metrics != nil {
		e.metrics.TradesFired.WithLabelValues("failed").Inc()
	}
	rec.Status = models.TradeStatusFailed
	if dispatchErr != nil {
		rec.StatusMessage = dispatchErr.Error()
	} else if ack != nil {
		rec.StatusMessage = ack.Message
	}
	e.publish(models.EventTradeFailed, models.TradeEventPayload{Record: &rec, Reason: rec.StatusMessage})
	e.persistTrade(ctx, rec)

	if killed {
		e.publish(models.EventRiskKilled, models.RiskEventPayload{Reason: killReason})
		e.persistRiskEvent(ctx, killReason, now)
	}
}

func (e *Engine) persistTrade(ctx context.Context, rec models.TradeRecord) {
	if e.sink == nil {
		return
	}
	if err := e.sink.RecordTrade(ctx, &rec); err != nil {
		e.log.WithError(err).Warn("failed to persist trade record")
	}
}
