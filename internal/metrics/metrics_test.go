package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllSeries(t *testing.T) {
	m := New()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestSetEngineStateZeroesOthers(t *testing.T) {
	m := New()
	known := []string{"DISARMED", "ARMED", "FIRING", "IN_POSITION"}
	m.SetEngineState("ARMED", known)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var stateFamily *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "reflex_engine_state" {
			stateFamily = f
		}
	}
	require.NotNil(t, stateFamily)

	values := map[string]float64{}
	for _, metric := range stateFamily.Metric {
		var state string
		for _, l := range metric.Label {
			if l.GetName() == "state" {
				state = l.GetValue()
			}
		}
		values[state] = metric.GetGauge().GetValue()
	}

	require.Equal(t, 1.0, values["ARMED"])
	require.Equal(t, 0.0, values["DISARMED"])
	require.Equal(t, 0.0, values["FIRING"])
	require.Equal(t, 0.0, values["IN_POSITION"])
}

func TestTicksTotalIncrements(t *testing.T) {
	m := New()
	m.TicksTotal.Inc()
	m.TicksTotal.Inc()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "reflex_ticks_total" {
			require.Equal(t, 2.0, f.Metric[0].GetCounter().GetValue())
		}
	}
}
