package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/antigravity-labs/reflex-engine/internal/bridge"
	"github.com/antigravity-labs/reflex-engine/internal/models"
)

// checkOpenPositionExits evaluates a tick against the open position's TP, SL,
// and (if configured) the optional L6 opposing-zone bailout, closing the
// position through the broker bridge if any of them trigger. This runs
// outside the filter package entirely — TP/SL/L6 are position-exit concerns,
// not confirmation-to-fire concerns, and keeping them apart is what lets
// internal/backtest share filter.Evaluate verbatim with the live engine.
func (e *Engine) checkOpenPositionExits(ctx context.Context, pos models.OpenPosition, t models.Tick) {
	mid := t.Mid()
	reason, shouldClose := positionExitReason(pos, mid)
	if !shouldClose {
		return
	}
	if err := e.ClosePosition(ctx, reason); err != nil {
		e.log.WithError(err).Warn("failed to close position on exit trigger")
	}
}

func positionExitReason(pos models.OpenPosition, mid float64) (models.CloseReason, bool) {
	switch pos.Direction {
	case models.DirectionBuy:
		if mid >= pos.TakeProfit {
			return models.CloseReasonTP, true
		}
		if mid <= pos.StopLoss {
			return models.CloseReasonSL, true
		}
	case models.DirectionSell:
		if mid <= pos.TakeProfit {
			return models.CloseReasonTP, true
		}
		if mid >= pos.StopLoss {
			return models.CloseReasonSL, true
		}
	}
	// L6: optional opposing-zone bailout. Disabled unless the strategy carried a
	// non-zero OpposingZone at fire time (spec Open Question — resolved here,
	// not inside the confirmation filter).
	if !pos.OpposingZone.IsZero() && pos.OpposingZone.Contains(mid) {
		return models.CloseReasonOpposingZone, true
	}
	return "", false
}

// ClosePosition closes the current open position through the broker bridge,
// recording the outcome regardless of the caller-supplied reason (manual,
// TP, SL, opposing-zone bailout, or an upstream EXPERT close).
func (e *Engine) ClosePosition(ctx context.Context, reason models.CloseReason) error {
	e.mu.Lock()
	if e.sm.Current() != models.StateInPosition || e.position == nil {
		e.mu.Unlock()
		return fmt.Errorf("no open position to close")
	}
	pos := *e.position
	e.mu.Unlock()

	cmd := bridge.CloseCommand{
		PositionID:   pos.PositionID,
		BrokerTicket: pos.BrokerTicket,
		Symbol:       pos.Symbol,
		Reason:       string(reason),
	}

	var ack *bridgeAck
	err := e.retryClient.Do(ctx, "bridge close", func(ctx context.Context) error {
		a, err := e.bridge.ClosePosition(ctx, cmd)
		if err != nil {
			return err
		}
		ack = (*bridgeAck)(a)
		return nil
	})

	now := e.now()
	closePrice := 0.0
	if buf := e.latestMid(); buf != 0 {
		closePrice = buf
	}

	e.mu.Lock()
	if err := e.sm.Transition(models.StateDisarmed, "position_closed"); err != nil {
		e.mu.Unlock()
		return err
	}
	e.position = nil
	e.mu.Unlock()
	e.recordState(models.StateDisarmed)
	if e.metrics != nil {
		e.metrics.PositionsClosed.WithLabelValues(strings.ToLower(string(reason))).Inc()
		e.metrics.OpenPositionPnL.Set(0)
	}

	rec := models.TradeRecord{
		PositionID:   pos.PositionID,
		StrategyID:   pos.StrategyID,
		Symbol:       pos.Symbol,
		Direction:    pos.Direction,
		EntryPrice:   pos.EntryPrice,
		LotSize:      pos.LotSize,
		TakeProfit:   pos.TakeProfit,
		StopLoss:     pos.StopLoss,
		BrokerTicket: pos.BrokerTicket,
		Status:       models.TradeStatusConfirmed,
		FiredAt:      pos.OpenedAt,
		ClosePrice:   closePrice,
		ProfitPips:   models.ProfitPipsFor(pos.Direction, pos.EntryPrice, closePrice),
		CloseReason:  reason,
		ClosedAt:     now,
	}
	if ack != nil {
		rec.StatusMessage = ack.Message
	}
	if err != nil {
		rec.StatusMessage = err.Error()
	}

	e.publish(models.EventPositionClosed, models.PositionEventPayload{Position: &pos, Reason: string(reason)})
	e.persistTrade(ctx, rec)
	return nil
}

// ExternalClose records a position close that already happened at the broker
// (an EXPERT close, or any other close the bridge reports out-of-band via the
// position-close ingest endpoint) without dispatching another close command.
func (e *Engine) ExternalClose(ctx context.Context, closePrice, profitPips float64, reason models.CloseReason) error {
	e.mu.Lock()
	if e.sm.Current() != models.StateInPosition || e.position == nil {
		e.mu.Unlock()
		return fmt.Errorf("no open position to close")
	}
	pos := *e.position
	if err := e.sm.Transition(models.StateDisarmed, "position_closed"); err != nil {
		e.mu.Unlock()
		return err
	}
	e.position = nil
	e.mu.Unlock()
	e.recordState(models.StateDisarmed)
	if e.metrics != nil {
		e.metrics.PositionsClosed.WithLabelValues(strings.ToLower(string(reason))).Inc()
		e.metrics.OpenPositionPnL.Set(0)
	}

	rec := models.TradeRecord{
		PositionID:   pos.PositionID,
		StrategyID:   pos.StrategyID,
		Symbol:       pos.Symbol,
		Direction:    pos.Direction,
		EntryPrice:   pos.EntryPrice,
		LotSize:      pos.LotSize,
		TakeProfit:   pos.TakeProfit,
		StopLoss:     pos.StopLoss,
		BrokerTicket: pos.BrokerTicket,
		Status:       models.TradeStatusConfirmed,
		FiredAt:      pos.OpenedAt,
		ClosePrice:   closePrice,
		ProfitPips:   profitPips,
		CloseReason:  reason,
		ClosedAt:     e.now(),
	}

	e.publish(models.EventPositionClosed, models.PositionEventPayload{Position: &pos, Reason: string(reason)})
	e.persistTrade(ctx, rec)
	return nil
}

func (e *Engine) latestMid() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	recent := e.buffer.Recent(1)
	if len(recent) == 0 {
		return 0
	}
	return recent[0].Mid()
}
