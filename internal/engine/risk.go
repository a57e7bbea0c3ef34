package engine

import (
	"context"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/bridge"
	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/antigravity-labs/reflex-engine/internal/risk"
	"github.com/antigravity-labs/reflex-engine/internal/storage"
)

// Kill trips the risk governor's kill switch from an operator action or an
// upstream system, independent of the auto-kill path in applyFireAck.
func (e *Engine) Kill(ctx context.Context, reason string) {
	now := e.now()
	e.mu.Lock()
	e.governor.Kill(reason)
	e.mu.Unlock()

	e.publish(models.EventRiskKilled, models.RiskEventPayload{Reason: reason})
	e.persistRiskEvent(ctx, reason, now)
}

// Rearm clears the kill switch.
func (e *Engine) Rearm(ctx context.Context) {
	now := e.now()
	e.mu.Lock()
	e.governor.Rearm()
	e.mu.Unlock()

	e.publish(models.EventRiskRearmed, models.RiskEventPayload{})
	e.persistRiskEvent(ctx, "rearmed", now)
}

// RiskStatusPayload is the spec §6 response for GET /v1/risk/status: the full
// risk state plus the governor's config, plus the bridge's circuit breaker
// state when the wired bridge exposes one.
type RiskStatusPayload struct {
	State       risk.State  `json:"state"`
	Config      risk.Config `json:"config"`
	BridgeState string      `json:"bridge_state,omitempty"`
}

// RiskStatus returns the governor's current risk state and config, per spec
// §6 ("Status returns the full RiskState plus config").
func (e *Engine) RiskStatus() RiskStatusPayload {
	e.mu.Lock()
	state := e.governor.State(e.now())
	cfg := e.governor.Config()
	br := e.bridge
	e.mu.Unlock()

	payload := RiskStatusPayload{State: state, Config: cfg}
	if bs, ok := br.(bridge.BreakerStater); ok {
		payload.BridgeState = bs.State().String()
	}
	return payload
}

func (e *Engine) persistRiskEvent(ctx context.Context, reason string, at time.Time) {
	if e.sink == nil {
		return
	}
	if err := e.sink.RecordRiskEvent(ctx, storage.RiskEventRecord{Reason: reason, At: at}); err != nil {
		e.log.WithError(err).Warn("failed to persist risk event")
	}
}
