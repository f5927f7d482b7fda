package alarm

import (
	"context"
	"errors"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

var (
	// ErrAlreadyAcknowledged is returned when acknowledging an acknowledged condition.
	ErrAlreadyAcknowledged = errors.New("condition is already acknowledged")
	// ErrNotAcknowledged is returned when confirming before acknowledging.
	ErrNotAcknowledged = errors.New("condition is not acknowledged")
	// ErrConfirmNotAllowed is returned when confirmation is disabled for the condition.
	ErrConfirmNotAllowed = errors.New("confirm is not allowed for this condition")
	// ErrAlreadyConfirmed is returned when confirming a confirmed condition.
	ErrAlreadyConfirmed = errors.New("condition is already confirmed")
)

// AckState is the composite acknowledgment state of a condition.
type AckState int

// Acknowledgment workflow states.
const (
	Unacknowledged AckState = iota
	Acknowledged
	Confirmed
)

// String returns the state name.
func (s AckState) String() string {
	switch s {
	case Acknowledged:
		return "Acknowledged"
	case Confirmed:
		return "Confirmed"
	default:
		return "Unacknowledged"
	}
}

// AcknowledgeableCondition adds the operator Acknowledge/Confirm workflow to a Condition.
type AcknowledgeableCondition struct {
	*Condition

	acked          bool
	confirmed      bool
	confirmAllowed bool

	// active reports whether the owning alarm is active, nil for plain conditions.
	active func() bool
}

// AckOption configures an AcknowledgeableCondition.
type AckOption func(*AcknowledgeableCondition)

// WithConfirmAllowed sets the initial confirmation guard. It defaults to true.
func WithConfirmAllowed(allowed bool) AckOption {
	return func(c *AcknowledgeableCondition) {
		c.confirmAllowed = allowed
	}
}

// NewAcknowledgeableCondition creates an Unacknowledged/Unconfirmed condition.
func NewAcknowledgeableCondition(
	rt event.Runtime,
	id, source event.NodeID,
	name string,
	opts ...AckOption,
) *AcknowledgeableCondition {
	return newAcknowledgeableCondition(rt, TypeAcknowledgeableCondition, id, source, name, opts...)
}

func newAcknowledgeableCondition(
	rt event.Runtime,
	typeName string,
	id, source event.NodeID,
	name string,
	opts ...AckOption,
) *AcknowledgeableCondition {
	c := &AcknowledgeableCondition{
		Condition:      newCondition(rt, typeName, id, source, name),
		confirmAllowed: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.addContributor(func(fields map[string]any) {
		fields[FieldAckedState] = c.acked
		fields[FieldConfirmedState] = c.confirmed
		fields[FieldConfirmAllowed] = c.confirmAllowed
	})
	c.retainPolicy = c.needsAttention

	return c
}

// Acked reflects AckedState.
func (c *AcknowledgeableCondition) Acked() bool {
	return c.acked
}

// Confirmed reflects ConfirmedState.
func (c *AcknowledgeableCondition) Confirmed() bool {
	return c.confirmed
}

// AckState returns the composite acknowledgment state.
func (c *AcknowledgeableCondition) AckState() AckState {
	switch {
	case c.confirmed:
		return Confirmed
	case c.acked:
		return Acknowledged
	default:
		return Unacknowledged
	}
}

// ConfirmAllowed reports whether Confirm may succeed.
func (c *AcknowledgeableCondition) ConfirmAllowed() bool {
	return c.confirmAllowed
}

// SetConfirmAllowed sets the confirmation guard.
func (c *AcknowledgeableCondition) SetConfirmAllowed(allowed bool) {
	c.confirmAllowed = allowed
	c.applyRetainPolicy()
}

// Rearm returns the workflow to Unacknowledged/Unconfirmed for a new occurrence.
// It does not notify.
func (c *AcknowledgeableCondition) Rearm() {
	c.acked = false
	c.confirmed = false
	c.startOccurrence()
	c.applyRetainPolicy()
}

// Acknowledge moves the condition to Acknowledged for the outstanding notification
// eventID and triggers a follow-up notification recording the action.
// An earlier id of the same occurrence reports ErrAlreadyAcknowledged once acknowledged.
func (c *AcknowledgeableCondition) Acknowledge(
	ctx context.Context,
	eventID []byte,
	comment event.LocalizedText,
	actor *Actor,
) error {
	if !c.enabled {
		return ErrConditionDisabled
	}

	if !c.IsOutstanding(eventID) {
		if c.acked && c.emittedInOccurrence(eventID) {
			return ErrAlreadyAcknowledged
		}

		return ErrInvalidEventID
	}

	if c.acked {
		return ErrAlreadyAcknowledged
	}

	return c.transit(ctx, comment, actor, func() { c.acked = true })
}

// Confirm moves an acknowledged condition to Confirmed for the outstanding
// notification eventID and triggers a follow-up notification.
func (c *AcknowledgeableCondition) Confirm(
	ctx context.Context,
	eventID []byte,
	comment event.LocalizedText,
	actor *Actor,
) error {
	if !c.enabled {
		return ErrConditionDisabled
	}

	if !c.IsOutstanding(eventID) {
		if c.confirmed && c.emittedInOccurrence(eventID) {
			return ErrAlreadyConfirmed
		}

		return ErrInvalidEventID
	}

	if !c.acked {
		return ErrNotAcknowledged
	}

	if !c.confirmAllowed {
		return ErrConfirmNotAllowed
	}

	if c.confirmed {
		return ErrAlreadyConfirmed
	}

	return c.transit(ctx, comment, actor, func() { c.confirmed = true })
}

// transit applies a workflow step and notifies. The step is rolled back if the notification fails.
func (c *AcknowledgeableCondition) transit(
	ctx context.Context,
	comment event.LocalizedText,
	actor *Actor,
	apply func(),
) error {
	var (
		acked, confirmed = c.acked, c.confirmed
		prevComment      = c.comment
		prevUser         = c.clientUserID
		prevActor        = c.lastActor
		retain           = c.retain
	)

	apply()
	c.comment = comment
	c.setActor(actor)
	c.applyRetainPolicy()

	if _, err := c.emit(ctx); err != nil {
		c.acked, c.confirmed = acked, confirmed
		c.comment, c.clientUserID, c.lastActor = prevComment, prevUser, prevActor
		c.retain = retain

		return err
	}

	return nil
}

// needsAttention is the Retain policy: active, unacknowledged or awaiting confirmation.
func (c *AcknowledgeableCondition) needsAttention() bool {
	if c.active != nil && c.active() {
		return true
	}

	return !c.acked || (c.confirmAllowed && !c.confirmed)
}
