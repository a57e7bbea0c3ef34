package storage

import (
	"context"
	"sync"

	"github.com/antigravity-labs/reflex-engine/internal/models"
)

// MockSink is a hand-rolled in-memory Sink for tests.
type MockSink struct {
	mu         sync.Mutex
	Trades     []models.TradeRecord
	RiskEvents []RiskEventRecord
	Strategies []models.ActiveStrategy
	ShouldFail bool
}

func (m *MockSink) RecordTrade(_ context.Context, rec *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockSink
	}
	m.Trades = append(m.Trades, *rec)
	return nil
}

func (m *MockSink) RecordRiskEvent(_ context.Context, rec RiskEventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockSink
	}
	m.RiskEvents = append(m.RiskEvents, rec)
	return nil
}

func (m *MockSink) RecordStrategy(_ context.Context, s *models.ActiveStrategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errMockSink
	}
	m.Strategies = append(m.Strategies, *s)
	return nil
}

func (m *MockSink) Close() error { return nil }
