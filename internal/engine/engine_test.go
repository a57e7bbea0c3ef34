package engine

import (
	"context"
	"testing"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/bridge"
	"github.com/antigravity-labs/reflex-engine/internal/eventbus"
	"github.com/antigravity-labs/reflex-engine/internal/filter"
	"github.com/antigravity-labs/reflex-engine/internal/metrics"
	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/antigravity-labs/reflex-engine/internal/retry"
	"github.com/antigravity-labs/reflex-engine/internal/risk"
	"github.com/antigravity-labs/reflex-engine/internal/storage"
	"github.com/stretchr/testify/require"
)

func rsiPtr(v float64) *float64 { return &v }

func newTestEngine(t *testing.T, mockBridge *bridge.MockBridge, sink *storage.MockSink) *Engine {
	t.Helper()
	cfg := filter.DefaultConfig
	cfg.RequireZoneProbe = false
	cfg.MinZoneTicks = 1

	return New(Config{
		Symbol:      "BTCUSD",
		FilterCfg:   cfg,
		Governor:    risk.NewGovernor(risk.DefaultConfig),
		Bridge:      mockBridge,
		RetryClient: retry.NewClient(nil, retry.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Timeout: time.Second}),
		Bus:         eventbus.New(nil),
		Sink:        sink,
	})
}

func testStrategy() models.ActiveStrategy {
	return models.ActiveStrategy{
		StrategyID: "s1",
		Symbol:     "BTCUSD",
		Direction:  models.DirectionBuy,
		EntryZone:  models.Zone{Low: 67000, High: 67050},
		TakeProfit: 67300,
		StopLoss:   66800,
		LotSize:    0.01,
	}
}

func TestIngestStrategyArmsEngine(t *testing.T) {
	e := newTestEngine(t, &bridge.MockBridge{}, &storage.MockSink{})
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))
	require.Equal(t, models.StateArmed, e.Snapshot().State)
}

func TestTickFiresAndConfirms(t *testing.T) {
	mb := &bridge.MockBridge{Ticket: "TCK-1"}
	sink := &storage.MockSink{}
	e := newTestEngine(t, mb, sink)
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))

	tick := models.Tick{Symbol: "BTCUSD", Bid: 67024, Ask: 67026, Time: time.Now(), RSI14: rsiPtr(50)}
	require.NoError(t, e.IngestTick(context.Background(), tick))

	snap := e.Snapshot()
	require.Equal(t, models.StateInPosition, snap.State)
	require.NotNil(t, snap.Position)
	require.Equal(t, "TCK-1", snap.Position.BrokerTicket)
	require.Len(t, sink.Trades, 1)
	require.Equal(t, models.TradeStatusConfirmed, sink.Trades[0].Status)
}

func TestTickFiresAndFailsRecordsOutcome(t *testing.T) {
	mb := &bridge.MockBridge{ShouldFail: true, FailAfter: 0}
	sink := &storage.MockSink{}
	e := newTestEngine(t, mb, sink)
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))

	tick := models.Tick{Symbol: "BTCUSD", Bid: 67024, Ask: 67026, Time: time.Now(), RSI14: rsiPtr(50)}
	require.NoError(t, e.IngestTick(context.Background(), tick))

	snap := e.Snapshot()
	require.Equal(t, models.StateDisarmed, snap.State)
	require.Len(t, sink.Trades, 1)
	require.Equal(t, models.TradeStatusFailed, sink.Trades[0].Status)
	require.Equal(t, 1, e.RiskStatus().State.ConsecutiveFailures)
}

func TestOutOfZoneTickNeverFires(t *testing.T) {
	mb := &bridge.MockBridge{}
	e := newTestEngine(t, mb, &storage.MockSink{})
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))

	tick := models.Tick{Symbol: "BTCUSD", Bid: 60000, Ask: 60002, Time: time.Now()}
	require.NoError(t, e.IngestTick(context.Background(), tick))

	require.Equal(t, models.StateArmed, e.Snapshot().State)
}

func TestTakeProfitClosesPosition(t *testing.T) {
	mb := &bridge.MockBridge{Ticket: "TCK-2"}
	sink := &storage.MockSink{}
	e := newTestEngine(t, mb, sink)
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))

	entryTick := models.Tick{Symbol: "BTCUSD", Bid: 67024, Ask: 67026, Time: time.Now(), RSI14: rsiPtr(50)}
	require.NoError(t, e.IngestTick(context.Background(), entryTick))
	require.Equal(t, models.StateInPosition, e.Snapshot().State)

	tpTick := models.Tick{Symbol: "BTCUSD", Bid: 67350, Ask: 67352, Time: time.Now()}
	require.NoError(t, e.IngestTick(context.Background(), tpTick))

	require.Equal(t, models.StateDisarmed, e.Snapshot().State)
	require.Len(t, sink.Trades, 2)
	require.Equal(t, models.CloseReasonTP, sink.Trades[1].CloseReason)
}

func TestDisarmClearsStrategy(t *testing.T) {
	e := newTestEngine(t, &bridge.MockBridge{}, &storage.MockSink{})
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))
	require.NoError(t, e.Disarm(context.Background(), "manual"))
	require.Equal(t, models.StateDisarmed, e.Snapshot().State)
}

func TestCrossedTickIsDiscarded(t *testing.T) {
	mb := &bridge.MockBridge{Ticket: "TCK-4"}
	e := newTestEngine(t, mb, &storage.MockSink{})
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))

	crossed := models.Tick{Symbol: "BTCUSD", Bid: 67026, Ask: 67024, Time: time.Now(), RSI14: rsiPtr(50)}
	require.NoError(t, e.IngestTick(context.Background(), crossed))

	require.Equal(t, models.StateArmed, e.Snapshot().State)
	require.Equal(t, int64(0), e.tickCount)
}

func TestOutOfOrderTickIsDiscarded(t *testing.T) {
	mb := &bridge.MockBridge{Ticket: "TCK-5"}
	e := newTestEngine(t, mb, &storage.MockSink{})
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))

	now := time.Now()
	first := models.Tick{Symbol: "BTCUSD", Bid: 60000, Ask: 60002, Time: now}
	require.NoError(t, e.IngestTick(context.Background(), first))
	require.Equal(t, int64(1), e.tickCount)

	stale := models.Tick{Symbol: "BTCUSD", Bid: 67024, Ask: 67026, Time: now.Add(-time.Second), RSI14: rsiPtr(50)}
	require.NoError(t, e.IngestTick(context.Background(), stale))

	require.Equal(t, int64(1), e.tickCount)
	require.Equal(t, models.StateArmed, e.Snapshot().State)
}

func TestReingestingUnchangedStrategyIsNoop(t *testing.T) {
	e := newTestEngine(t, &bridge.MockBridge{}, &storage.MockSink{})
	strategy := testStrategy()
	require.NoError(t, e.IngestStrategy(context.Background(), strategy))
	before := e.Snapshot()

	require.NoError(t, e.IngestStrategy(context.Background(), strategy))
	after := e.Snapshot()

	require.Equal(t, before, after)
}

func TestReingestingChangedStrategyReplacesIt(t *testing.T) {
	e := newTestEngine(t, &bridge.MockBridge{}, &storage.MockSink{})
	strategy := testStrategy()
	require.NoError(t, e.IngestStrategy(context.Background(), strategy))

	changed := strategy
	changed.LotSize = 0.02
	require.NoError(t, e.IngestStrategy(context.Background(), changed))

	require.Equal(t, 0.02, e.Snapshot().Strategy.LotSize)
}

func TestRiskStatusIncludesConfig(t *testing.T) {
	e := newTestEngine(t, &bridge.MockBridge{}, &storage.MockSink{})
	status := e.RiskStatus()
	require.Equal(t, risk.DefaultConfig, status.Config)
	require.Empty(t, status.BridgeState)
}

func gaugeValue(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "reflex_open_position_pnl" {
			return f.Metric[0].GetGauge().GetValue()
		}
	}
	t.Fatal("reflex_open_position_pnl not found")
	return 0
}

func TestOpenPositionPnLTracksTicksWhileInPosition(t *testing.T) {
	mb := &bridge.MockBridge{Ticket: "TCK-6"}
	mtx := metrics.New()
	cfg := filter.DefaultConfig
	cfg.RequireZoneProbe = false
	cfg.MinZoneTicks = 1
	e := New(Config{
		Symbol:      "BTCUSD",
		FilterCfg:   cfg,
		Governor:    risk.NewGovernor(risk.DefaultConfig),
		Bridge:      mb,
		RetryClient: retry.NewClient(nil, retry.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Timeout: time.Second}),
		Bus:         eventbus.New(nil),
		Sink:        &storage.MockSink{},
		Metrics:     mtx,
	})
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))

	entryTick := models.Tick{Symbol: "BTCUSD", Bid: 67024, Ask: 67026, Time: time.Now(), RSI14: rsiPtr(50)}
	require.NoError(t, e.IngestTick(context.Background(), entryTick))
	require.Equal(t, models.StateInPosition, e.Snapshot().State)
	require.Equal(t, 0.0, gaugeValue(t, mtx))

	upTick := models.Tick{Symbol: "BTCUSD", Bid: 67124, Ask: 67126, Time: time.Now()}
	require.NoError(t, e.IngestTick(context.Background(), upTick))
	require.Equal(t, 100.0, gaugeValue(t, mtx))

	tpTick := models.Tick{Symbol: "BTCUSD", Bid: 67350, Ask: 67352, Time: time.Now()}
	require.NoError(t, e.IngestTick(context.Background(), tpTick))
	require.Equal(t, models.StateDisarmed, e.Snapshot().State)
	require.Equal(t, 0.0, gaugeValue(t, mtx))
}

func TestKillBlocksFiring(t *testing.T) {
	mb := &bridge.MockBridge{Ticket: "TCK-3"}
	e := newTestEngine(t, mb, &storage.MockSink{})
	require.NoError(t, e.IngestStrategy(context.Background(), testStrategy()))
	e.Kill(context.Background(), "manual")

	tick := models.Tick{Symbol: "BTCUSD", Bid: 67024, Ask: 67026, Time: time.Now(), RSI14: rsiPtr(50)}
	require.NoError(t, e.IngestTick(context.Background(), tick))

	require.Equal(t, models.StateArmed, e.Snapshot().State)
}
