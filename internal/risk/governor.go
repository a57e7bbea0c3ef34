// Package risk implements the risk governor: kill switch, daily trade count,
// consecutive-failure cooldown, and auto-kill. It holds no lock of its own — the
// reflex engine's single coarse lock protects it, the same discipline the spec
// requires for the tick buffer and shared state.
package risk

import (
	"fmt"
	"time"
)

// Outcome of a dispatched trade, fed into RecordOutcome.
type Outcome string

const (
	// Confirmed means the broker bridge confirmed the fill.
	Confirmed Outcome = "CONFIRMED"
	// Failed means the broker bridge rejected the order or the wait timed out.
	Failed Outcome = "FAILED"
)

// Decision is the result of Check.
type Decision struct {
	Allowed bool
	Reason  string // set when Allowed is false
}

func allow() Decision            { return Decision{Allowed: true} }
func block(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Config holds the governor's tunables (spec §6 configuration block).
type Config struct {
	MaxTradesPerDay        int
	MaxConsecutiveFailures int
	CooldownSecsAfterFailure int
}

// DefaultConfig mirrors the spec's stated defaults.
var DefaultConfig = Config{
	MaxTradesPerDay:          10,
	MaxConsecutiveFailures:   3,
	CooldownSecsAfterFailure: 300,
}

// State is the governor's mutable risk state (spec RiskState).
type State struct {
	IsKilled            bool
	KillReason          string
	TradesToday         int
	ConsecutiveFailures int
	LastTradeAt         time.Time
	CooldownUntil       time.Time
}

// Governor tracks risk state against a Config. Not safe for concurrent use on its
// own; the reflex engine serializes all access under its lock.
type Governor struct {
	cfg   Config
	state State
}

// NewGovernor creates a governor with the given config, clamping nonsensical values
// to DefaultConfig the way internal/config.Normalize clamps defaults.
func NewGovernor(cfg Config) *Governor {
	if cfg.MaxTradesPerDay <= 0 {
		cfg.MaxTradesPerDay = DefaultConfig.MaxTradesPerDay
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = DefaultConfig.MaxConsecutiveFailures
	}
	if cfg.CooldownSecsAfterFailure <= 0 {
		cfg.CooldownSecsAfterFailure = DefaultConfig.CooldownSecsAfterFailure
	}
	return &Governor{cfg: cfg}
}

// State returns a copy of the current risk state, after applying the daily reset
// for the given instant (so callers see an up-to-date TradesToday).
func (g *Governor) State(now time.Time) State {
	g.applyDailyReset(now)
	return g.state
}

// Config returns the governor's configuration.
func (g *Governor) Config() Config {
	return g.cfg
}

// applyDailyReset resets TradesToday to 0 if now falls on a different UTC date than
// LastTradeAt. Called from every read and mutation, per spec §4.3.
func (g *Governor) applyDailyReset(now time.Time) {
	if g.state.LastTradeAt.IsZero() {
		return
	}
	if !sameUTCDate(g.state.LastTradeAt, now) {
		g.state.TradesToday = 0
	}
}

func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// Check evaluates whether a fire may proceed at instant now.
func (g *Governor) Check(now time.Time) Decision {
	g.applyDailyReset(now)

	if g.state.IsKilled {
		return block(fmt.Sprintf("killed: %s", g.state.KillReason))
	}
	if now.Before(g.state.CooldownUntil) {
		return block("cooldown")
	}
	if g.state.TradesToday >= g.cfg.MaxTradesPerDay {
		return block("daily_limit")
	}
	return allow()
}

// InCooldown reports whether now is before the cooldown deadline.
func (g *Governor) InCooldown(now time.Time) bool {
	return now.Before(g.state.CooldownUntil)
}

// RecordFire increments the daily trade count and stamps LastTradeAt. It does not
// touch ConsecutiveFailures — only RecordOutcome(Confirmed, ...) resets that.
func (g *Governor) RecordFire(now time.Time) {
	g.applyDailyReset(now)
	g.state.TradesToday++
	g.state.LastTradeAt = now
}

// RecordOutcome applies the result of a dispatched trade. A Failed outcome starts
// the cooldown and may auto-kill the governor once MaxConsecutiveFailures is
// reached; a Confirmed outcome resets the consecutive-failure counter.
func (g *Governor) RecordOutcome(kind Outcome, now time.Time) {
	switch kind {
	case Confirmed:
		g.state.ConsecutiveFailures = 0
	case Failed:
		g.state.ConsecutiveFailures++
		g.state.CooldownUntil = now.Add(time.Duration(g.cfg.CooldownSecsAfterFailure) * time.Second)
		if g.state.ConsecutiveFailures >= g.cfg.MaxConsecutiveFailures {
			g.kill("consecutive_failures")
		}
	}
}

// Kill sets the kill switch with an operator- or system-supplied reason.
func (g *Governor) Kill(reason string) {
	g.kill(reason)
}

func (g *Governor) kill(reason string) {
	g.state.IsKilled = true
	g.state.KillReason = reason
}

// Rearm clears the kill switch. It does not reset ConsecutiveFailures or
// CooldownUntil — those clear on their own schedule (a Confirmed outcome, or the
// cooldown deadline passing).
func (g *Governor) Rearm() {
	g.state.IsKilled = false
	g.state.KillReason = ""
}
