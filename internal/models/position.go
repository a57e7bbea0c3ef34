package models

import "time"

// TradeStatus is the lifecycle status of a TradeRecord.
type TradeStatus string

const (
	// TradeStatusPending means the fire was dispatched to the broker bridge and the
	// engine is awaiting confirmation.
	TradeStatusPending TradeStatus = "PENDING"
	// TradeStatusConfirmed means the broker bridge confirmed the fill.
	TradeStatusConfirmed TradeStatus = "CONFIRMED"
	// TradeStatusFailed means the broker bridge rejected the order, or the
	// confirmation timed out.
	TradeStatusFailed TradeStatus = "FAILED"
)

// CloseReason is why a position was closed.
type CloseReason string

const (
	// CloseReasonTP indicates take-profit was hit.
	CloseReasonTP CloseReason = "TP"
	// CloseReasonSL indicates stop-loss was hit.
	CloseReasonSL CloseReason = "SL"
	// CloseReasonManual indicates an operator-initiated close.
	CloseReasonManual CloseReason = "MANUAL"
	// CloseReasonExpert indicates the broker's own expert/automation closed it.
	CloseReasonExpert CloseReason = "EXPERT"
	// CloseReasonOpposingZone indicates the optional L6 bailout filter fired.
	CloseReasonOpposingZone CloseReason = "OPPOSING_ZONE"
	// CloseReasonOther is a catch-all for reasons the broker bridge doesn't classify.
	CloseReasonOther CloseReason = "OTHER"
)

// OpenPosition is the single position the engine may hold at any instant.
type OpenPosition struct {
	PositionID    string    `json:"position_id"`
	StrategyID    string    `json:"strategy_id"` // back-reference, lookup only
	Symbol        string    `json:"symbol"`
	Direction     Direction `json:"direction"`
	EntryPrice    float64   `json:"entry_price"`
	LotSize       float64   `json:"lot_size"`
	TakeProfit    float64   `json:"take_profit"`
	StopLoss      float64   `json:"stop_loss"`
	BrokerTicket  string    `json:"broker_ticket,omitempty"`
	OpenedAt      time.Time `json:"opened_at"`

	// OpposingZone is copied from the ActiveStrategy at fire time since the
	// strategy slot is cleared on fire; the zero value disables the L6 layer.
	OpposingZone Zone `json:"opposing_zone,omitempty"`
}

// TradeRecord is an append-only history entry covering a position's full lifecycle,
// from dispatch through close.
type TradeRecord struct {
	PositionID     string      `json:"position_id"`
	StrategyID     string      `json:"strategy_id"`
	Symbol         string      `json:"symbol"`
	Direction      Direction   `json:"direction"`
	EntryPrice     float64     `json:"entry_price"`
	LotSize        float64     `json:"lot_size"`
	TakeProfit     float64     `json:"take_profit"`
	StopLoss       float64     `json:"stop_loss"`
	BrokerTicket   string      `json:"broker_ticket,omitempty"`
	Status         TradeStatus `json:"status"`
	StatusMessage  string      `json:"status_message,omitempty"`
	FiredAt        time.Time   `json:"fired_at"`
	ClosePrice     float64     `json:"close_price,omitempty"`
	ProfitPips     float64     `json:"profit_pips,omitempty"`
	CloseReason    CloseReason `json:"close_reason,omitempty"`
	ClosedAt       time.Time   `json:"closed_at,omitempty"`
}

// NewTradeRecord seeds a PENDING record at fire time from an ActiveStrategy and the
// current market price.
func NewTradeRecord(s ActiveStrategy, entryPrice float64, firedAt time.Time) TradeRecord {
	return TradeRecord{
		StrategyID: s.StrategyID,
		Symbol:     s.Symbol,
		Direction:  s.Direction,
		EntryPrice: entryPrice,
		LotSize:    s.LotSize,
		TakeProfit: s.TakeProfit,
		StopLoss:   s.StopLoss,
		Status:     TradeStatusPending,
		FiredAt:    firedAt,
	}
}

// ProfitPipsFor computes signed profit in price units (not lots) for a direction
// given entry and close price. Positive is favorable.
func ProfitPipsFor(dir Direction, entryPrice, closePrice float64) float64 {
	if dir == DirectionSell {
		return entryPrice - closePrice
	}
	return closePrice - entryPrice
}
