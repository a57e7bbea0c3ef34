// Package backtest replays a historical tick sequence through the same
// filter.Evaluate used by the live engine, with no broker, risk governor, or
// event bus involved. Sharing the filter verbatim is what guarantees a
// backtest's fire decision matches what the live engine would have done on
// the same strategy and ticks (spec P5).
package backtest

import (
	"github.com/antigravity-labs/reflex-engine/internal/filter"
	"github.com/antigravity-labs/reflex-engine/internal/models"
)

const tickBufferCapacity = 256

// StepTrace records the filter's decision on a single replayed tick.
type StepTrace struct {
	Index    int             `json:"index"`
	Tick     models.Tick     `json:"tick"`
	Decision filter.Decision `json:"decision"`
}

// Result is the outcome of replaying a tick sequence against one strategy.
// Fired reports whether any tick produced a Fire decision; FireIndex is the
// index into the input tick slice that fired (-1 if Fired is false). Trace
// holds every step's decision, in replay order, for inspection.
type Result struct {
	Fired     bool        `json:"fired"`
	FireIndex int         `json:"fire_index"`
	FireTick  models.Tick `json:"fire_tick,omitempty"`
	Trace     []StepTrace `json:"trace"`
}

// Run replays ticks (assumed ordered oldest-first) against strategy using cfg,
// stopping at the first Fire decision. It mirrors internal/engine/tick.go's
// IngestTick ordering: the window preceding a tick is snapshotted before that
// tick is pushed into the buffer, so replay and live engine see identical
// `recent` windows for identical input.
func Run(strategy models.ActiveStrategy, ticks []models.Tick, cfg filter.Config) Result {
	buf := models.NewTickBuffer(tickBufferCapacity)
	result := Result{FireIndex: -1, Trace: make([]StepTrace, 0, len(ticks))}

	for i, t := range ticks {
		recent := buf.Recent(cfg.ProbeLookback)
		buf.Push(t)

		decision := filter.Evaluate(strategy, t, recent, cfg)
		result.Trace = append(result.Trace, StepTrace{Index: i, Tick: t, Decision: decision})

		if decision.Outcome == filter.Fire {
			result.Fired = true
			result.FireIndex = i
			result.FireTick = t
			return result
		}
	}

	return result
}
