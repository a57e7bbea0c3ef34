package bridge

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerSettings configures the gobreaker.CircuitBreaker wrapping a Bridge.
type CircuitBreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultCircuitBreakerSettings trips after a third of at-least-5 requests fail
// inside a 1-minute window, then probes again after 30s half-open.
var DefaultCircuitBreakerSettings = CircuitBreakerSettings{
	MaxRequests:  1,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.34,
}

// BreakerStater is implemented by any Bridge that can report a circuit
// breaker's current state, so callers (internal/engine.RiskStatus) can
// surface it without depending on the concrete CircuitBreakerBridge type.
type BreakerStater interface {
	State() gobreaker.State
}

// CircuitBreakerBridge wraps a Bridge so repeated dispatch failures trip a
// gobreaker.CircuitBreaker and short-circuit further calls until the bridge
// recovers, instead of hammering a broken bridge on every tick.
type CircuitBreakerBridge struct {
	bridge  Bridge
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreakerBridge wraps bridge with DefaultCircuitBreakerSettings.
func NewCircuitBreakerBridge(bridge Bridge) *CircuitBreakerBridge {
	return NewCircuitBreakerBridgeWithSettings(bridge, DefaultCircuitBreakerSettings)
}

// NewCircuitBreakerBridgeWithSettings wraps bridge with caller-supplied settings.
func NewCircuitBreakerBridgeWithSettings(bridge Bridge, settings CircuitBreakerSettings) *CircuitBreakerBridge {
	st := gobreaker.Settings{
		Name:        "bridge",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= settings.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
	}
	return &CircuitBreakerBridge{bridge: bridge, breaker: gobreaker.NewCircuitBreaker(st)}
}

// State reports the breaker's current state, surfaced on /v1/risk/status.
func (cb *CircuitBreakerBridge) State() gobreaker.State {
	return cb.breaker.State()
}

func (cb *CircuitBreakerBridge) Dispatch(ctx context.Context, cmd FireCommand) (*Ack, error) {
	res, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.bridge.Dispatch(ctx, cmd)
	})
	return unwrap(res, err)
}

func (cb *CircuitBreakerBridge) ClosePosition(ctx context.Context, cmd CloseCommand) (*Ack, error) {
	res, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.bridge.ClosePosition(ctx, cmd)
	})
	return unwrap(res, err)
}

func (cb *CircuitBreakerBridge) ModifyPosition(ctx context.Context, cmd ModifyCommand) (*Ack, error) {
	res, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.bridge.ModifyPosition(ctx, cmd)
	})
	return unwrap(res, err)
}

func unwrap(res interface{}, err error) (*Ack, error) {
	if err != nil {
		return nil, err
	}
	ack, _ := res.(*Ack)
	return ack, nil
}
