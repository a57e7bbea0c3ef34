package models

import (
	"fmt"
	"time"
)

// Direction is the directional bias of a strategy.
type Direction string

const (
	// DirectionBuy indicates a long entry.
	DirectionBuy Direction = "BUY"
	// DirectionSell indicates a short entry.
	DirectionSell Direction = "SELL"
	// DirectionNoTrade marks a strategy that never fires: the confirmation filter
	// rejects every tick for it. Ingesting one arms the engine like any other
	// strategy; it does not disarm it.
	DirectionNoTrade Direction = "NO_TRADE"
)

// Zone is a closed price interval, inclusive on both ends.
type Zone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether price falls within the closed interval [Low, High].
func (z Zone) Contains(price float64) bool {
	return price >= z.Low && price <= z.High
}

// IsZero reports whether the zone was never set (the zero value).
func (z Zone) IsZero() bool {
	return z.Low == 0 && z.High == 0
}

// ActiveStrategy is the single trade plan the engine is currently armed with.
// At most one ActiveStrategy exists at any instant (enforced by internal/engine).
type ActiveStrategy struct {
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	EntryZone  Zone      `json:"entry_zone"`
	TakeProfit float64   `json:"take_profit"`
	StopLoss   float64   `json:"stop_loss"`
	LotSize    float64   `json:"lot_size"`
	Rationale  string    `json:"rationale"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`

	// OpposingZone is optional and, when set, is carried onto the OpenPosition at
	// fire time to power the L6 opposing-zone bailout filter layer. The zero value
	// means "not specified" and disables L6 for this strategy.
	OpposingZone Zone `json:"opposing_zone,omitempty"`
}

// Expired reports whether the strategy's expiry has passed as of now.
func (s ActiveStrategy) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Validate checks the invariants from the data model: zone ordering, TP/SL placement
// relative to the entry zone for the given direction, and a positive lot size.
// Direction NO_TRADE skips the TP/SL checks (it never fires).
func (s ActiveStrategy) Validate() error {
	if s.StrategyID == "" {
		return fmt.Errorf("strategy_id is required")
	}
	if s.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if s.EntryZone.Low > s.EntryZone.High {
		return fmt.Errorf("entry_zone.low (%v) must be <= entry_zone.high (%v)", s.EntryZone.Low, s.EntryZone.High)
	}
	if s.LotSize <= 0 {
		return fmt.Errorf("lot_size must be > 0, got %v", s.LotSize)
	}

	switch s.Direction {
	case DirectionNoTrade:
		return nil
	case DirectionBuy:
		if s.TakeProfit <= s.EntryZone.High {
			return fmt.Errorf("BUY take_profit (%v) must be > entry_zone.high (%v)", s.TakeProfit, s.EntryZone.High)
		}
		if s.StopLoss >= s.EntryZone.Low {
			return fmt.Errorf("BUY stop_loss (%v) must be < entry_zone.low (%v)", s.StopLoss, s.EntryZone.Low)
		}
	case DirectionSell:
		if s.TakeProfit >= s.EntryZone.Low {
			return fmt.Errorf("SELL take_profit (%v) must be < entry_zone.low (%v)", s.TakeProfit, s.EntryZone.Low)
		}
		if s.StopLoss <= s.EntryZone.High {
			return fmt.Errorf("SELL stop_loss (%v) must be > entry_zone.high (%v)", s.StopLoss, s.EntryZone.High)
		}
	default:
		return fmt.Errorf("direction must be one of BUY, SELL, NO_TRADE, got %q", s.Direction)
	}

	return nil
}
