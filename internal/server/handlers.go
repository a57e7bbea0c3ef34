package server

import (
	"encoding/json"
	"net/http"

	"github.com/antigravity-labs/reflex-engine/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStrategyIngest(w http.ResponseWriter, r *http.Request) {
	var strategy models.ActiveStrategy
	if err := json.NewDecoder(r.Body).Decode(&strategy); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.engine.IngestStrategy(r.Context(), strategy); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, s.engine.Snapshot())
}

func (s *Server) handleStrategyRead(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleStrategyDisarm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "manual"
	}
	if err := s.engine.Disarm(r.Context(), body.Reason); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// tickActionResponse is the tick-ingest response contract: broker bridges use
// it synchronously to decide whether to execute an order.
type tickActionResponse struct {
	Action     string             `json:"action"` // NO_ACTION | TRADE_TRIGGERED | CLOSE_POSITION | RISK_BLOCKED
	Reason     string             `json:"reason,omitempty"`
	Direction  models.Direction   `json:"direction,omitempty"`
	EntryPrice float64            `json:"entry_price,omitempty"`
	TakeProfit float64            `json:"take_profit,omitempty"`
	StopLoss   float64            `json:"stop_loss,omitempty"`
	LotSize    float64            `json:"lot_size,omitempty"`
	StrategyID string             `json:"strategy_id,omitempty"`
	Position   *models.OpenPosition `json:"position,omitempty"`
}

// handleTickIngest subscribes to the bus for the duration of a single
// IngestTick call so the synchronous HTTP response can discriminate which
// action (if any) that tick caused — IngestTick's internal bridge dispatch
// completes before it returns, so every event it publishes is already queued
// on the subscription by the time the handler starts draining it.
func (s *Server) handleTickIngest(w http.ResponseWriter, r *http.Request) {
	var tick models.Tick
	if err := json.NewDecoder(r.Body).Decode(&tick); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var sub *subscription
	if s.bus != nil {
		sub = newSubscription(s.bus)
		defer sub.close()
	}

	if err := s.engine.IngestTick(r.Context(), tick); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := tickActionResponse{Action: "NO_ACTION"}
	if sub != nil {
		for _, event := range sub.drain() {
			switch event.Type {
			case models.EventPositionOpened:
				if payload, ok := event.Payload.(models.PositionEventPayload); ok && payload.Position != nil {
					resp = tickActionResponse{
						Action:     "TRADE_TRIGGERED",
						Direction:  payload.Position.Direction,
						EntryPrice: payload.Position.EntryPrice,
						TakeProfit: payload.Position.TakeProfit,
						StopLoss:   payload.Position.StopLoss,
						LotSize:    payload.Position.LotSize,
						StrategyID: payload.Position.StrategyID,
					}
				}
			case models.EventPositionClosed:
				if payload, ok := event.Payload.(models.PositionEventPayload); ok {
					resp = tickActionResponse{Action: "CLOSE_POSITION", Reason: payload.Reason, Position: payload.Position}
				}
			case models.EventTradeBlocked:
				if payload, ok := event.Payload.(models.TradeEventPayload); ok {
					resp = tickActionResponse{Action: "RISK_BLOCKED", Reason: payload.Reason}
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePositionClose(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BrokerTicket string             `json:"broker_ticket,omitempty"`
		Symbol       string             `json:"symbol"`
		ClosePrice   float64            `json:"close_price"`
		ProfitPips   float64            `json:"profit_pips"`
		CloseReason  models.CloseReason `json:"close_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.engine.ExternalClose(r.Context(), body.ClosePrice, body.ProfitPips, body.CloseReason); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleRiskKill(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "manual"
	}
	s.engine.Kill(r.Context(), body.Reason)
	writeJSON(w, http.StatusOK, s.engine.RiskStatus())
}

func (s *Server) handleRiskRearm(w http.ResponseWriter, r *http.Request) {
	s.engine.Rearm(r.Context())
	writeJSON(w, http.StatusOK, s.engine.RiskStatus())
}

func (s *Server) handleRiskStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.RiskStatus())
}

func (s *Server) handleEventsHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.history.all())
}
