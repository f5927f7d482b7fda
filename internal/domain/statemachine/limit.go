// Package statemachine implements finite state machines exposed by alarms,
// notably the ExclusiveLimitStateMachineType of OPC UA Part 9.
package statemachine

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// LimitState is a severity band of an exclusive limit alarm.
type LimitState int

// Bands ordered from the lowest to the highest value range.
const (
	// LimitNone is the inactive pseudo-state: no band holds.
	LimitNone LimitState = iota
	LimitLowLow
	LimitLow
	LimitHigh
	LimitHighHigh
)

// TypeExclusiveLimitStateMachine is the browse name of the state machine type.
const TypeExclusiveLimitStateMachine = "ExclusiveLimitStateMachineType"

// ErrUnsupportedState is returned when a band was not configured for the machine.
var ErrUnsupportedState = errors.New("limit state is not supported by this state machine")

// limitStateNames maps states to their browse names.
//
//nolint:gochecknoglobals // Lookup table.
var limitStateNames = map[LimitState]string{
	LimitNone:     "",
	LimitLowLow:   "LowLow",
	LimitLow:      "Low",
	LimitHigh:     "High",
	LimitHighHigh: "HighHigh",
}

// limitStateIDs holds the standard namespace-0 node ids of the band states.
//
//nolint:gochecknoglobals // Lookup table.
var limitStateIDs = map[LimitState]string{
	LimitHighHigh: "i=9329",
	LimitHigh:     "i=9331",
	LimitLow:      "i=9333",
	LimitLowLow:   "i=9335",
}

// AllLimitStates lists every band in ascending order.
func AllLimitStates() []LimitState {
	return []LimitState{LimitLowLow, LimitLow, LimitHigh, LimitHighHigh}
}

// String returns the browse name of the state, empty for LimitNone.
func (s LimitState) String() string {
	return limitStateNames[s]
}

// NodeID returns the standard node id of the state, empty for LimitNone.
func (s LimitState) NodeID() string {
	return limitStateIDs[s]
}

// ParseLimitState converts a browse name into a LimitState.
func ParseLimitState(name string) (LimitState, error) {
	for state, stateName := range limitStateNames {
		if stateName == name {
			return state, nil
		}
	}

	return LimitNone, fmt.Errorf("parse limit state %q: %w", name, ErrUnsupportedState)
}

// Clock supplies transition timestamps.
type Clock interface {
	Now() time.Time
}

// ExclusiveLimitStateMachine tracks which single band of a limit alarm is active.
// At most one band is active at any instant; there is no terminal state.
type ExclusiveLimitStateMachine struct {
	FiniteStateMachine

	// supported lists the bands the owning alarm configured.
	supported []LimitState
	// active is the current band, LimitNone when inactive.
	active LimitState
}

// NewExclusiveLimitStateMachine creates an inactive machine.
// Without supported bands all four bands are allowed.
func NewExclusiveLimitStateMachine(clock Clock, supported ...LimitState) *ExclusiveLimitStateMachine {
	if len(supported) == 0 {
		supported = AllLimitStates()
	}

	supported = slices.Clone(supported)
	slices.Sort(supported)

	return &ExclusiveLimitStateMachine{
		FiniteStateMachine: FiniteStateMachine{clock: clock},
		supported:          slices.Compact(supported),
	}
}

// Supported returns the configured bands in ascending order.
func (m *ExclusiveLimitStateMachine) Supported() []LimitState {
	return slices.Clone(m.supported)
}

// IsSupported reports whether s is one of the configured bands.
func (m *ExclusiveLimitStateMachine) IsSupported(s LimitState) bool {
	return slices.Contains(m.supported, s)
}

// Active returns the current band and whether any band is active.
func (m *ExclusiveLimitStateMachine) Active() (LimitState, bool) {
	return m.active, m.active != LimitNone
}

// IsActive reports whether s is the current band.
func (m *ExclusiveLimitStateMachine) IsActive(s LimitState) bool {
	return s != LimitNone && m.active == s
}

// SetState makes s the only active band. The previous band is deactivated in
// the same step. Re-entering the active band is a no-op and returns false.
func (m *ExclusiveLimitStateMachine) SetState(s LimitState) (bool, error) {
	if s == LimitNone {
		return m.Deactivate(), nil
	}

	if !m.IsSupported(s) {
		return false, fmt.Errorf("set %q: %w", s, ErrUnsupportedState)
	}

	if m.active == s {
		return false, nil
	}

	m.transit(m.active.String(), s.String(), s.NodeID())
	m.active = s

	return true, nil
}

// Deactivate returns the machine to the inactive pseudo-state.
func (m *ExclusiveLimitStateMachine) Deactivate() bool {
	if m.active == LimitNone {
		return false
	}

	m.transit(m.active.String(), "", "")
	m.active = LimitNone

	return true
}

// Restore sets the active band without recording a transition.
// It is used when loading persisted alarm state.
func (m *ExclusiveLimitStateMachine) Restore(s LimitState) error {
	if s != LimitNone && !m.IsSupported(s) {
		return fmt.Errorf("restore %q: %w", s, ErrUnsupportedState)
	}

	m.active = s
	m.current = State{Name: s.String(), ID: s.NodeID()}

	return nil
}
