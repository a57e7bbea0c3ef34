package engine

import (
	"github.com/antigravity-labs/reflex-engine/internal/bridge"
	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/google/uuid"
)

// bridgeAck mirrors bridge.Ack; declared locally so this file's conversion is
// a plain type-cast instead of a field-by-field copy.
type bridgeAck bridge.Ack

func bridgeFireCommand(s models.ActiveStrategy, t models.Tick) bridge.FireCommand {
	return bridge.FireCommand{
		Direction:      string(s.Direction),
		EntryPrice:     t.Mid(),
		TakeProfit:     s.TakeProfit,
		StopLoss:       s.StopLoss,
		LotSize:        s.LotSize,
		MagicTag:       "reflex-" + s.StrategyID,
		StrategyID:     s.StrategyID,
		IdempotencyKey: uuid.NewString(),
	}
}
