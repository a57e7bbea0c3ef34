// Package storage persists the append-only logs the reflex engine produces:
// trade records, risk events, and strategy ingests. Two drivers exist — a JSON
// file sink (the default, atomic-write technique lifted from a position-storage
// file that held a single mutable position plus history) and a Postgres sink for
// deployments that want queryable history.
package storage

import (
	"context"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/models"
)

// RiskEventRecord captures a governor state change worth persisting.
type RiskEventRecord struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// TradeSink records fire outcomes.
type TradeSink interface {
	RecordTrade(ctx context.Context, rec *models.TradeRecord) error
}

// RiskEventSink records kill/rearm/auto-kill events.
type RiskEventSink interface {
	RecordRiskEvent(ctx context.Context, rec RiskEventRecord) error
}

// StrategyLogSink records every strategy ingest (including replacements).
type StrategyLogSink interface {
	RecordStrategy(ctx context.Context, s *models.ActiveStrategy) error
}

// Sink bundles all three append-only logs behind one persistence boundary.
type Sink interface {
	TradeSink
	RiskEventSink
	StrategyLogSink
	Close() error
}
