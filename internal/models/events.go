package models

import "time"

// EventType enumerates the event-bus taxonomy from the spec.
type EventType string

const (
	EventSnapshot         EventType = "SNAPSHOT"
	EventStrategyUpdated  EventType = "STRATEGY_UPDATED"
	EventStrategyCleared  EventType = "STRATEGY_CLEARED"
	EventTradeFiring      EventType = "TRADE_FIRING"
	EventPositionOpened   EventType = "POSITION_OPENED"
	EventPositionClosed   EventType = "POSITION_CLOSED"
	EventTradeFailed      EventType = "TRADE_FAILED"
	EventTradeBlocked     EventType = "TRADE_BLOCKED"
	EventRiskKilled       EventType = "RISK_KILLED"
	EventRiskRearmed      EventType = "RISK_REARMED"
	EventServerStats      EventType = "SERVER_STATS"
	EventDebug            EventType = "DEBUG" // Wait/Reject trace, not part of the spec taxonomy proper
)

// Event is a single item emitted onto the event bus. Payload is one of the
// typed structs below depending on Type, stored as `any` so the bus stays
// transport-agnostic (JSON for the WebSocket transport, Go values for in-process
// subscribers such as tests).
type Event struct {
	Type    EventType `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

// StrategyEventPayload accompanies STRATEGY_UPDATED / STRATEGY_CLEARED.
type StrategyEventPayload struct {
	Strategy *ActiveStrategy `json:"strategy,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// TradeEventPayload accompanies TRADE_FIRING / TRADE_FAILED / TRADE_BLOCKED.
type TradeEventPayload struct {
	Record *TradeRecord `json:"record,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

// PositionEventPayload accompanies POSITION_OPENED / POSITION_CLOSED.
type PositionEventPayload struct {
	Position *OpenPosition `json:"position,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

// RiskEventPayload accompanies RISK_KILLED / RISK_REARMED.
type RiskEventPayload struct {
	Reason string `json:"reason,omitempty"`
}

// DebugEventPayload accompanies the DEBUG event emitted for Wait/Reject decisions.
type DebugEventPayload struct {
	State  ReflexState `json:"state"`
	Reason string      `json:"reason"`
}

// ServerStatsPayload accompanies the periodic SERVER_STATS event.
type ServerStatsPayload struct {
	State      ReflexState `json:"state"`
	TickCount  int64       `json:"tick_count"`
	TradeCount int64       `json:"trade_count"`
	IsKilled   bool        `json:"is_killed"`
	TradesToday int        `json:"trades_today"`
}

// SnapshotPayload accompanies the SNAPSHOT event sent to a new subscriber.
type SnapshotPayload struct {
	State    ReflexState     `json:"state"`
	Strategy *ActiveStrategy `json:"strategy,omitempty"`
	Position *OpenPosition   `json:"position,omitempty"`
}
