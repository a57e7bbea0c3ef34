package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerBridgeSuccessfulCalls(t *testing.T) {
	mock := &MockBridge{}
	cb := NewCircuitBreakerBridge(mock)

	ack, err := cb.Dispatch(context.Background(), FireCommand{Direction: "BUY"})
	require.NoError(t, err)
	require.True(t, ack.Confirmed)
}

func TestCircuitBreakerBridgeTripsOnFailures(t *testing.T) {
	mock := &MockBridge{ShouldFail: true, FailAfter: 0}
	settings := CircuitBreakerSettings{
		MaxRequests:  1,
		Interval:     10 * time.Millisecond,
		Timeout:      20 * time.Millisecond,
		MinRequests:  1,
		FailureRatio: 0.5,
	}
	cb := NewCircuitBreakerBridgeWithSettings(mock, settings)

	for i := 0; i < 5; i++ {
		_, _ = cb.Dispatch(context.Background(), FireCommand{})
	}

	require.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Dispatch(context.Background(), FireCommand{})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreakerBridgeRecovers(t *testing.T) {
	mock := &MockBridge{ShouldFail: true, FailAfter: 0}
	settings := CircuitBreakerSettings{
		MaxRequests:  3,
		Interval:     10 * time.Millisecond,
		Timeout:      15 * time.Millisecond,
		MinRequests:  1,
		FailureRatio: 0.5,
	}
	cb := NewCircuitBreakerBridgeWithSettings(mock, settings)

	for i := 0; i < 5; i++ {
		_, _ = cb.Dispatch(context.Background(), FireCommand{})
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	deadline := time.After(200 * time.Millisecond)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for cb.State() != gobreaker.StateHalfOpen {
		select {
		case <-deadline:
			t.Fatal("circuit breaker never reached half-open")
		case <-ticker.C:
		}
	}

	mock.ShouldFail = false
	ack, err := cb.Dispatch(context.Background(), FireCommand{})
	require.NoError(t, err)
	require.True(t, ack.Confirmed)
}
