package models

import "fmt"

// ReflexState is one of the four states the reflex engine can occupy.
type ReflexState string

const (
	// StateDisarmed means no active strategy is held.
	StateDisarmed ReflexState = "DISARMED"
	// StateArmed means a strategy is held and no position is open.
	StateArmed ReflexState = "ARMED"
	// StateFiring means a fire was dispatched and the engine awaits broker confirmation.
	StateFiring ReflexState = "FIRING"
	// StateInPosition means the broker confirmed the fill and a position is open.
	StateInPosition ReflexState = "IN_POSITION"
)

// ReflexTransition defines one allowed state transition.
type ReflexTransition struct {
	From        ReflexState
	To          ReflexState
	Condition   string
	Description string
}

// ValidReflexTransitions enumerates every transition the reflex engine may make.
// This table, together with reflexTransitionLookup below, makes "can't fire while
// IN_POSITION" a lookup-table property rather than a scattered set of if-checks.
var ValidReflexTransitions = []ReflexTransition{
	{StateDisarmed, StateArmed, "strategy_ingested", "Strategy stored, engine armed"},
	{StateArmed, StateArmed, "strategy_replaced", "Strategy replaced while armed"},
	{StateArmed, StateDisarmed, "strategy_cleared", "Strategy expired or explicitly disarmed"},
	{StateArmed, StateFiring, "fire", "Filter fired and risk governor allowed; strategy cleared atomically"},
	{StateFiring, StateInPosition, "bridge_confirmed", "Broker bridge confirmed the fill"},
	{StateFiring, StateDisarmed, "bridge_failed", "Broker bridge rejected or the confirmation wait timed out"},
	{StateInPosition, StateDisarmed, "position_closed", "Position closed, back to idle"},
}

var reflexTransitionLookup map[ReflexState]map[ReflexState]map[string]bool

func init() {
	reflexTransitionLookup = make(map[ReflexState]map[ReflexState]map[string]bool)
	for _, tr := range ValidReflexTransitions {
		if reflexTransitionLookup[tr.From] == nil {
			reflexTransitionLookup[tr.From] = make(map[ReflexState]map[string]bool)
		}
		if reflexTransitionLookup[tr.From][tr.To] == nil {
			reflexTransitionLookup[tr.From][tr.To] = make(map[string]bool)
		}
		reflexTransitionLookup[tr.From][tr.To][tr.Condition] = true
	}
}

// ReflexStateMachine tracks the engine's current and previous state. It holds no
// lock of its own; the reflex engine's single coarse lock (internal/engine) protects
// all access.
type ReflexStateMachine struct {
	current  ReflexState
	previous ReflexState
}

// NewReflexStateMachine creates a state machine starting in DISARMED.
func NewReflexStateMachine() *ReflexStateMachine {
	return &ReflexStateMachine{current: StateDisarmed, previous: StateDisarmed}
}

// Current returns the current state.
func (sm *ReflexStateMachine) Current() ReflexState {
	return sm.current
}

// Previous returns the previous state.
func (sm *ReflexStateMachine) Previous() ReflexState {
	return sm.previous
}

// IsValidTransition reports whether moving to `to` under `condition` is defined from
// the current state.
func (sm *ReflexStateMachine) IsValidTransition(to ReflexState, condition string) error {
	if toMap, ok := reflexTransitionLookup[sm.current]; ok {
		if condMap, ok := toMap[to]; ok {
			if condMap[condition] {
				return nil
			}
		}
	}
	return fmt.Errorf("invalid reflex transition from %s to %s with condition %q", sm.current, to, condition)
}

// Transition moves the state machine to `to` if the transition is valid.
func (sm *ReflexStateMachine) Transition(to ReflexState, condition string) error {
	if err := sm.IsValidTransition(to, condition); err != nil {
		return err
	}
	sm.previous = sm.current
	sm.current = to
	return nil
}

// CanFire reports whether the engine may currently evaluate the confirmation filter
// for a fire decision. Only ARMED allows it; FIRING and IN_POSITION never do
// (invariant P3 - ticks update the buffer but never reach the filter in those states).
func (sm *ReflexStateMachine) CanFire() bool {
	return sm.current == StateArmed
}
