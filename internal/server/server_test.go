package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/bridge"
	"github.com/antigravity-labs/reflex-engine/internal/engine"
	"github.com/antigravity-labs/reflex-engine/internal/eventbus"
	"github.com/antigravity-labs/reflex-engine/internal/filter"
	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/antigravity-labs/reflex-engine/internal/retry"
	"github.com/antigravity-labs/reflex-engine/internal/risk"
	"github.com/antigravity-labs/reflex-engine/internal/storage"
	"github.com/stretchr/testify/require"
)

func rsiPtr(v float64) *float64 { return &v }

func newTestServer(t *testing.T) (*Server, *bridge.MockBridge) {
	t.Helper()
	cfg := filter.DefaultConfig
	cfg.RequireZoneProbe = false
	cfg.MinZoneTicks = 1

	mb := &bridge.MockBridge{Ticket: "TCK-1"}
	bus := eventbus.New(nil)
	eng := engine.New(engine.Config{
		Symbol:      "BTCUSD",
		FilterCfg:   cfg,
		Governor:    risk.NewGovernor(risk.DefaultConfig),
		Bridge:      mb,
		RetryClient: retry.NewClient(nil, retry.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Timeout: time.Second}),
		Bus:         bus,
		Sink:        &storage.MockSink{},
	})

	s := New(Config{Port: 0, Engine: eng, Bus: bus})
	return s, mb
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthzIsPublic(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s.router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStrategyIngestAndRead(t *testing.T) {
	s, _ := newTestServer(t)
	strategy := models.ActiveStrategy{
		StrategyID: "s1",
		Symbol:     "BTCUSD",
		Direction:  models.DirectionBuy,
		EntryZone:  models.Zone{Low: 67000, High: 67050},
		TakeProfit: 67300,
		StopLoss:   66800,
		LotSize:    0.01,
	}
	rec := doJSON(t, s.router, http.MethodPost, "/v1/strategy", strategy)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, s.router, http.MethodGet, "/v1/strategy", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.SnapshotPayload
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	require.Equal(t, models.StateArmed, snap.State)
}

func TestTickIngestReportsTradeTriggered(t *testing.T) {
	s, _ := newTestServer(t)
	strategy := models.ActiveStrategy{
		StrategyID: "s1",
		Symbol:     "BTCUSD",
		Direction:  models.DirectionBuy,
		EntryZone:  models.Zone{Low: 67000, High: 67050},
		TakeProfit: 67300,
		StopLoss:   66800,
		LotSize:    0.01,
	}
	require.Equal(t, http.StatusAccepted, doJSON(t, s.router, http.MethodPost, "/v1/strategy", strategy).Code)

	tick := models.Tick{Symbol: "BTCUSD", Bid: 67024, Ask: 67026, Time: time.Now(), RSI14: rsiPtr(50)}
	rec := doJSON(t, s.router, http.MethodPost, "/v1/ticks", tick)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp tickActionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "TRADE_TRIGGERED", resp.Action)
	require.Equal(t, models.DirectionBuy, resp.Direction)
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	cfg := filter.DefaultConfig
	bus := eventbus.New(nil)
	eng := engine.New(engine.Config{
		Symbol:      "BTCUSD",
		FilterCfg:   cfg,
		Governor:    risk.NewGovernor(risk.DefaultConfig),
		Bridge:      &bridge.MockBridge{},
		RetryClient: retry.NewClient(nil, retry.Config{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Timeout: time.Second}),
		Bus:         bus,
		Sink:        &storage.MockSink{},
	})
	s := New(Config{Port: 0, Engine: eng, Bus: bus, AuthToken: "secret"})

	rec := doJSON(t, s.router, http.MethodGet, "/v1/strategy", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/strategy", nil)
	req.Header.Set("X-Api-Key", "secret")
	rec2 := httptest.NewRecorder()
	s.router.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestRiskKillBlocksFiring(t *testing.T) {
	s, _ := newTestServer(t)
	strategy := models.ActiveStrategy{
		StrategyID: "s1",
		Symbol:     "BTCUSD",
		Direction:  models.DirectionBuy,
		EntryZone:  models.Zone{Low: 67000, High: 67050},
		TakeProfit: 67300,
		StopLoss:   66800,
		LotSize:    0.01,
	}
	require.Equal(t, http.StatusAccepted, doJSON(t, s.router, http.MethodPost, "/v1/strategy", strategy).Code)
	require.Equal(t, http.StatusOK, doJSON(t, s.router, http.MethodPost, "/v1/risk/kill", map[string]string{"reason": "test"}).Code)

	tick := models.Tick{Symbol: "BTCUSD", Bid: 67024, Ask: 67026, Time: time.Now(), RSI14: rsiPtr(50)}
	rec := doJSON(t, s.router, http.MethodPost, "/v1/ticks", tick)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp tickActionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "RISK_BLOCKED", resp.Action)
}
