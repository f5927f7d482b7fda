package statemachine

import "time"

// State identifies a state of a finite state machine.
type State struct {
	// Name is the browse name of the state, empty when no state holds.
	Name string
	// ID is the node id of the state definition.
	ID string
}

// Transition records the last state change of a machine.
type Transition struct {
	// Name is the browse name of the transition, e.g. "HighToHighHigh".
	Name string
	// From is the state left, empty when the machine was inactive.
	From string
	// To is the state entered, empty when the machine became inactive.
	To string
	// Time is when the transition happened.
	Time time.Time
}

// FiniteStateMachine holds the CurrentState and LastTransition variables
// shared by every FiniteStateMachineType instance.
type FiniteStateMachine struct {
	clock Clock

	current State
	last    *Transition
}

// CurrentState returns the state that holds now.
func (m *FiniteStateMachine) CurrentState() State {
	return m.current
}

// LastTransition returns a copy of the last transition, nil before the first one.
func (m *FiniteStateMachine) LastTransition() *Transition {
	if m.last == nil {
		return nil
	}

	t := *m.last

	return &t
}

// TransitionTime returns when the last transition happened.
func (m *FiniteStateMachine) TransitionTime() time.Time {
	if m.last == nil {
		return time.Time{}
	}

	return m.last.Time
}

// RestoreTransition replaces the last transition with a copy of t, nil clears it.
func (m *FiniteStateMachine) RestoreTransition(t *Transition) {
	if t == nil {
		m.last = nil

		return
	}

	last := *t
	m.last = &last
}

// transit moves the machine to a new state and records the transition.
func (m *FiniteStateMachine) transit(from, to, toID string) {
	var now time.Time
	if m.clock != nil {
		now = m.clock.Now().UTC()
	}

	m.current = State{Name: to, ID: toID}
	m.last = &Transition{
		Name: transitionName(from, to),
		From: from,
		To:   to,
		Time: now,
	}
}

// transitionName builds Part 9 style transition names such as "HighToHighHigh".
func transitionName(from, to string) string {
	if from == "" {
		from = "Inactive"
	}

	if to == "" {
		to = "Inactive"
	}

	return from + "To" + to
}
