package storage

import (
	"context"
	"fmt"

	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink persists the three append-only logs into Postgres tables,
// created on first connect so a fresh deployment needs no separate migration
// step.
type PostgresSink struct {
	pool *pgxpool.Pool
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reflex_trades (
	id BIGSERIAL PRIMARY KEY,
	position_id TEXT NOT NULL,
	strategy_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	lot_size DOUBLE PRECISION NOT NULL,
	take_profit DOUBLE PRECISION NOT NULL,
	stop_loss DOUBLE PRECISION NOT NULL,
	broker_ticket TEXT,
	status TEXT NOT NULL,
	status_message TEXT,
	fired_at TIMESTAMPTZ NOT NULL,
	close_price DOUBLE PRECISION,
	profit_pips DOUBLE PRECISION,
	close_reason TEXT,
	closed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS reflex_risk_events (
	id BIGSERIAL PRIMARY KEY,
	reason TEXT NOT NULL,
	at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS reflex_strategies (
	id BIGSERIAL PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	zone_low DOUBLE PRECISION NOT NULL,
	zone_high DOUBLE PRECISION NOT NULL,
	take_profit DOUBLE PRECISION NOT NULL,
	stop_loss DOUBLE PRECISION NOT NULL,
	lot_size DOUBLE PRECISION NOT NULL,
	rationale TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ
);
`

// NewPostgresSink connects to connStr and ensures the reflex_* tables exist.
func NewPostgresSink(ctx context.Context, connStr string) (*PostgresSink, error) {
	if connStr == "" {
		return nil, fmt.Errorf("postgres sink: connection string is required")
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres sink: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres sink: migrate schema: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (p *PostgresSink) RecordTrade(ctx context.Context, rec *models.TradeRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO reflex_trades
			(position_id, strategy_id, symbol, direction, entry_price, lot_size,
			 take_profit, stop_loss, broker_ticket, status, status_message, fired_at,
			 close_price, profit_pips, close_reason, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		rec.PositionID, rec.StrategyID, rec.Symbol, rec.Direction, rec.EntryPrice, rec.LotSize,
		rec.TakeProfit, rec.StopLoss, rec.BrokerTicket, rec.Status, rec.StatusMessage, rec.FiredAt,
		nullableFloat(rec.ClosePrice), nullableFloat(rec.ProfitPips), rec.CloseReason, nullableTime(rec.ClosedAt))
	if err != nil {
		return fmt.Errorf("postgres sink: record trade: %w", err)
	}
	return nil
}

func (p *PostgresSink) RecordRiskEvent(ctx context.Context, rec RiskEventRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO reflex_risk_events (reason, at) VALUES ($1,$2)`, rec.Reason, rec.At)
	if err != nil {
		return fmt.Errorf("postgres sink: record risk event: %w", err)
	}
	return nil
}

func (p *PostgresSink) RecordStrategy(ctx context.Context, s *models.ActiveStrategy) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO reflex_strategies
			(strategy_id, symbol, direction, zone_low, zone_high, take_profit, stop_loss,
			 lot_size, rationale, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		s.StrategyID, s.Symbol, s.Direction, s.EntryZone.Low, s.EntryZone.High, s.TakeProfit,
		s.StopLoss, s.LotSize, s.Rationale, s.CreatedAt, nullableTime(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("postgres sink: record strategy: %w", err)
	}
	return nil
}

func (p *PostgresSink) Close() error {
	p.pool.Close()
	return nil
}

func nullableFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableTime(t interface{ IsZero() bool }) any {
	if t.IsZero() {
		return nil
	}
	return t
}
