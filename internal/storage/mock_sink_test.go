package storage

import (
	"context"
	"testing"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMockSinkRecordsAndFails(t *testing.T) {
	m := &MockSink{}
	rec := models.NewTradeRecord(models.ActiveStrategy{StrategyID: "s1"}, 1.0, time.Now())
	require.NoError(t, m.RecordTrade(context.Background(), &rec))
	require.Len(t, m.Trades, 1)

	m.ShouldFail = true
	require.Error(t, m.RecordTrade(context.Background(), &rec))
}
