// Package filter implements the four-layer (plus one optional) confirmation filter:
// a pure function over (active strategy, current tick, recent tick window, config)
// that decides whether the reflex engine may fire. It has no side effects and no
// dependency on engine state, so the live engine and the backtest driver
// (internal/backtest) can share it verbatim — the cleanest way to guarantee that
// both produce identical Fire/Wait/Reject outcomes on the same input (spec P5).
package filter

import (
	"github.com/antigravity-labs/reflex-engine/internal/models"
)

// Outcome classifies a Decision.
type Outcome string

const (
	// Fire means every layer passed; the engine may dispatch to the broker bridge.
	Fire Outcome = "FIRE"
	// Wait means a layer failed but may pass on a later tick (retryable).
	Wait Outcome = "WAIT"
	// Reject means the layer failure is not retryable for this strategy (NO_TRADE).
	Reject Outcome = "REJECT"
)

// Decision is the result of evaluating a tick against a strategy.
type Decision struct {
	Outcome Outcome
	Reason  string
}

func fireDecision() Decision   { return Decision{Outcome: Fire} }
func waitDecision(r string) Decision   { return Decision{Outcome: Wait, Reason: r} }
func rejectDecision(r string) Decision { return Decision{Outcome: Reject, Reason: r} }

// Config holds the confirmation filter's tunables (spec ConfirmationConfig).
type Config struct {
	MaxSpread       float64
	RequireZoneProbe bool
	MinZoneTicks    int
	ProbeLookback   int
	RSIOverbought   float64
	RSIOversold     float64
}

// DefaultConfig mirrors the defaults named in the spec (probe_lookback default 15).
var DefaultConfig = Config{
	MaxSpread:        50,
	RequireZoneProbe: true,
	MinZoneTicks:     2,
	ProbeLookback:    15,
	RSIOverbought:    70,
	RSIOversold:      30,
}

// Evaluate runs the layered confirmation checks in strict order; the first failure
// short-circuits the remaining layers. `recent` must exclude the current tick and be
// ordered oldest-first (as TickBuffer.Recent returns it) — it is the window the L3
// zone-probe and L4 zone-dwell layers inspect.
func Evaluate(strategy models.ActiveStrategy, tick models.Tick, recent []models.Tick, cfg Config) Decision {
	// L0: direction gate.
	if strategy.Direction == models.DirectionNoTrade {
		return rejectDecision("no_trade")
	}

	// L1: spread.
	if tick.Spread() > cfg.MaxSpread {
		return waitDecision("spread_too_wide")
	}

	// L2: zone containment.
	mid := tick.Mid()
	if !strategy.EntryZone.Contains(mid) {
		return waitDecision("outside_zone")
	}

	// L3: zone probe (optional).
	if cfg.RequireZoneProbe {
		if !hasProbe(strategy.Direction, strategy.EntryZone, recent, cfg.ProbeLookback) {
			return waitDecision("no_probe")
		}
	}

	// L4: zone dwell.
	if dwellCount(strategy.EntryZone, tick, recent) < cfg.MinZoneTicks {
		return waitDecision("insufficient_dwell")
	}

	// L5: RSI filter (optional - only if the tick carries an RSI reading).
	if tick.RSI14 != nil {
		rsi := *tick.RSI14
		switch strategy.Direction {
		case models.DirectionBuy:
			if !(rsi < cfg.RSIOverbought) {
				return waitDecision("rsi_out_of_range")
			}
		case models.DirectionSell:
			if !(rsi > cfg.RSIOversold) {
				return waitDecision("rsi_out_of_range")
			}
		}
	}

	return fireDecision()
}

// hasProbe checks whether, over the trailing probeLookback ticks (oldest-first,
// excluding the current tick), price probed outside the zone in the direction
// consistent with a bounce.
func hasProbe(dir models.Direction, zone models.Zone, recent []models.Tick, lookback int) bool {
	window := trailingWindow(recent, lookback)
	for _, t := range window {
		mid := t.Mid()
		switch dir {
		case models.DirectionBuy:
			if mid < zone.Low {
				return true
			}
		case models.DirectionSell:
			if mid > zone.High {
				return true
			}
		}
	}
	return false
}

// dwellCount counts trailing ticks (including the current tick) whose mid lies
// inside the zone, counting back from the current tick until one falls outside.
func dwellCount(zone models.Zone, current models.Tick, recent []models.Tick) int {
	count := 0
	if zone.Contains(current.Mid()) {
		count++
	} else {
		return 0
	}
	for i := len(recent) - 1; i >= 0; i-- {
		if zone.Contains(recent[i].Mid()) {
			count++
		} else {
			break
		}
	}
	return count
}

// trailingWindow returns the last `lookback` elements of ticks (or fewer if ticks is
// shorter), preserving order.
func trailingWindow(ticks []models.Tick, lookback int) []models.Tick {
	if lookback <= 0 || len(ticks) == 0 {
		return nil
	}
	if lookback >= len(ticks) {
		return ticks
	}
	return ticks[len(ticks)-lookback:]
}
