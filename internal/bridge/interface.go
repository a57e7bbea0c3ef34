// Package bridge defines the fire-dispatch contract to the external broker bridge
// (out of scope per the spec; this package specifies only the boundary) and two
// implementations: an HTTP client and a circuit-breaker decorator.
package bridge

import (
	"context"
	"time"
)

// FireCommand is the dispatch contract to the broker bridge (spec §4.4).
// IdempotencyKey is generated once per fire and reused across retry.Client's
// retry attempts, so a dispatch that succeeded at the broker but timed out on
// the response never double-fills on a retried attempt.
type FireCommand struct {
	Direction      string  `json:"direction"`
	EntryPrice     float64 `json:"entry_price"`
	TakeProfit     float64 `json:"take_profit"`
	StopLoss       float64 `json:"stop_loss"`
	LotSize        float64 `json:"lot_size"`
	MagicTag       string  `json:"magic_tag"`
	StrategyID     string  `json:"strategy_id"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// CloseCommand asks the bridge to close the open position, used by the optional L6
// opposing-zone bailout.
type CloseCommand struct {
	PositionID   string  `json:"position_id"`
	BrokerTicket string  `json:"broker_ticket,omitempty"`
	Symbol       string  `json:"symbol"`
	Reason       string  `json:"reason"`
}

// ModifyCommand would carry a trailing-stop or take-profit adjustment. No caller in
// internal/engine produces one yet (spec §9 leaves this an extension point); the
// HTTP implementation below still honors the bridge protocol's existing endpoint.
type ModifyCommand struct {
	PositionID   string  `json:"position_id"`
	BrokerTicket string  `json:"broker_ticket,omitempty"`
	NewStopLoss  float64 `json:"new_stop_loss,omitempty"`
	NewTakeProfit float64 `json:"new_take_profit,omitempty"`
}

// Ack is the broker bridge's response. Confirmed is true exactly when the response
// carries a broker ticket, per spec §4.4's classification rule.
type Ack struct {
	BrokerTicket string
	Confirmed    bool
	Message      string
}

// Bridge is the boundary interface the reflex engine dispatches through.
type Bridge interface {
	Dispatch(ctx context.Context, cmd FireCommand) (*Ack, error)
	ClosePosition(ctx context.Context, cmd CloseCommand) (*Ack, error)
	ModifyPosition(ctx context.Context, cmd ModifyCommand) (*Ack, error)
}

// DefaultDispatchTimeout is the suggested bridge-ack wait from spec §4.4.
const DefaultDispatchTimeout = 5 * time.Second
