// Package metrics exposes the reflex engine's Prometheus counters and gauges:
// trade fires, risk blocks, filter rejects/waits, and current engine state.
// Grounded on the label-vec-per-dimension style used for the bot's own metrics
// in the example pack, wired into its own registry so a process can run more
// than one Metrics instance (e.g. in tests) without double-registration panics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every series the reflex engine reports.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal       prometheus.Counter
	TradesFired      *prometheus.CounterVec // labels: outcome (confirmed|failed)
	FilterDecisions  *prometheus.CounterVec // labels: outcome (fire|wait|reject), reason
	RiskBlocks       *prometheus.CounterVec // labels: reason
	PositionsClosed  *prometheus.CounterVec // labels: reason (tp|sl|manual|expert|opposing_zone|other)
	EngineState      *prometheus.GaugeVec   // labels: state, value is 1 for the active state, else 0
	OpenPositionPnL  prometheus.Gauge
}

// New constructs a Metrics bundle registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reflex_ticks_total",
			Help: "Total ticks ingested by the reflex engine.",
		}),
		TradesFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex_trades_fired_total",
			Help: "Trades dispatched to the broker bridge, by outcome.",
		}, []string{"outcome"}),
		FilterDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex_filter_decisions_total",
			Help: "Confirmation filter decisions, by outcome and reason.",
		}, []string{"outcome", "reason"}),
		RiskBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex_risk_blocks_total",
			Help: "Fires blocked by the risk governor, by reason.",
		}, []string{"reason"}),
		PositionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reflex_positions_closed_total",
			Help: "Positions closed, by close reason.",
		}, []string{"reason"}),
		EngineState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reflex_engine_state",
			Help: "1 for the reflex engine's current state, 0 for the others.",
		}, []string{"state"}),
		OpenPositionPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reflex_open_position_pnl",
			Help: "Unrealized profit in price units for the current open position, 0 when flat.",
		}),
	}

	m.registry.MustRegister(
		m.TicksTotal,
		m.TradesFired,
		m.FilterDecisions,
		m.RiskBlocks,
		m.PositionsClosed,
		m.EngineState,
		m.OpenPositionPnL,
	)
	return m
}

// Registry returns the Prometheus registry these metrics are bound to, for
// wiring into an HTTP handler via promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetEngineState zeroes every known state series and sets `state` to 1.
func (m *Metrics) SetEngineState(state string, known []string) {
	for _, s := range known {
		if s == state {
			m.EngineState.WithLabelValues(s).Set(1)
		} else {
			m.EngineState.WithLabelValues(s).Set(0)
		}
	}
}
