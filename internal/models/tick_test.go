package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTickMidAndSpread(t *testing.T) {
	tk := Tick{Bid: 67000, Ask: 67002}
	require.Equal(t, 67001.0, tk.Mid())
	require.Equal(t, 2.0, tk.Spread())
	require.True(t, tk.Valid())
}

func TestTickInvalidWhenAskBelowBid(t *testing.T) {
	tk := Tick{Bid: 10, Ask: 9}
	require.False(t, tk.Valid())
}

func TestTickBufferEvictsOldest(t *testing.T) {
	buf := NewTickBuffer(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		buf.Push(Tick{Symbol: "BTCUSD", Bid: float64(i), Ask: float64(i), Time: base.Add(time.Duration(i) * time.Second)})
	}
	require.Equal(t, 3, buf.Len())
	recent := buf.Recent(10)
	require.Len(t, recent, 3)
	// Oldest surviving tick should be index 2 (0,1 evicted), newest last.
	require.Equal(t, 2.0, recent[0].Bid)
	require.Equal(t, 4.0, recent[2].Bid)
}

func TestTickBufferRecentFewerThanRequested(t *testing.T) {
	buf := NewTickBuffer(5)
	buf.Push(Tick{Symbol: "BTCUSD", Bid: 1})
	buf.Push(Tick{Symbol: "BTCUSD", Bid: 2})
	require.Len(t, buf.Recent(10), 2)
}

func TestTickBufferSymbolSwitchClears(t *testing.T) {
	buf := NewTickBuffer(5)
	buf.Push(Tick{Symbol: "BTCUSD", Bid: 1})
	buf.Push(Tick{Symbol: "BTCUSD", Bid: 2})
	require.Equal(t, 2, buf.Len())

	buf.Push(Tick{Symbol: "ETHUSD", Bid: 99})
	require.Equal(t, 1, buf.Len())
	require.Equal(t, 99.0, buf.Recent(1)[0].Bid)
}
