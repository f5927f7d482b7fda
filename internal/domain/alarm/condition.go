package alarm

import (
	"bytes"
	"context"
	"errors"
	"slices"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// Browse names of the condition event types.
const (
	TypeCondition                = "ConditionType"
	TypeAcknowledgeableCondition = "AcknowledgeableConditionType"
	TypeAlarmCondition           = "AlarmConditionType"
	TypeLimitAlarm               = "LimitAlarmType"
	TypeExclusiveLimitAlarm      = "ExclusiveLimitAlarmType"
)

// Browse names of the fields conditions add to notifications.
const (
	FieldConditionID    = "ConditionId"
	FieldConditionName  = "ConditionName"
	FieldBranchID       = "BranchId"
	FieldRetain         = "Retain"
	FieldEnabledState   = "EnabledState"
	FieldComment        = "Comment"
	FieldClientUserID   = "ClientUserId"
	FieldLastSeverity   = "LastSeverity"
	FieldAckedState     = "AckedState"
	FieldConfirmedState = "ConfirmedState"
	FieldConfirmAllowed = "ConfirmAllowed"
	FieldActiveState    = "ActiveState"
	FieldLimitState     = "LimitState"
	FieldLastTransition = "LastTransition"
	FieldInputValue     = "InputValue"
)

// maxOccurrenceIDs bounds the ids remembered for one occurrence.
const maxOccurrenceIDs = 32

var (
	// ErrInvalidEventID is returned when an event id does not match the outstanding notification.
	ErrInvalidEventID = errors.New("event id does not match the outstanding notification")
	// ErrConditionDisabled is returned for methods called on a disabled condition.
	ErrConditionDisabled = errors.New("condition is disabled")
	// ErrAlreadyEnabled is returned when enabling an enabled condition.
	ErrAlreadyEnabled = errors.New("condition is already enabled")
	// ErrAlreadyDisabled is returned when disabling a disabled condition.
	ErrAlreadyDisabled = errors.New("condition is already disabled")
	// ErrUnknownCondition is returned when no condition has the requested name.
	ErrUnknownCondition = errors.New("condition not found")
)

// Condition is a retained, stateful event source. It emits many notifications
// over its life while its own identity and state persist.
type Condition struct {
	*event.Record

	// id is the node id of the condition object itself.
	id event.NodeID
	// name is the ConditionName.
	name string
	// branchID is always null: branches are not tracked.
	branchID event.NodeID

	retain       bool
	enabled      bool
	comment      event.LocalizedText
	clientUserID string
	lastActor    *Actor
	lastSeverity uint16
	// lastEventID is the id of the outstanding notification.
	lastEventID []byte
	// occurrence holds the ids emitted since the current occurrence started, oldest first.
	occurrence [][]byte

	// contributors add subtype fields to every notification.
	contributors []func(fields map[string]any)
	// retainPolicy recomputes Retain after state changes, nil keeps it as is.
	retainPolicy func() bool
}

// NewCondition creates an enabled ConditionType instance.
// id is the condition node and source the node its notifications originate from.
func NewCondition(rt event.Runtime, id, source event.NodeID, name string) *Condition {
	return newCondition(rt, TypeCondition, id, source, name)
}

func newCondition(rt event.Runtime, typeName string, id, source event.NodeID, name string) *Condition {
	return &Condition{
		Record:  event.NewRecord(rt, source, typeName),
		id:      id,
		name:    name,
		enabled: true,
	}
}

// ConditionID returns the node id of the condition.
func (c *Condition) ConditionID() event.NodeID {
	return c.id
}

// ConditionName returns the name of the condition.
func (c *Condition) ConditionName() string {
	return c.name
}

// BranchID returns the branch id, always null.
func (c *Condition) BranchID() event.NodeID {
	return c.branchID
}

// Retain reports whether the condition is still of interest to clients.
func (c *Condition) Retain() bool {
	return c.retain
}

// SetRetain sets the Retain flag. It does not notify.
func (c *Condition) SetRetain(retain bool) {
	c.retain = retain
}

// Enabled reflects EnabledState.
func (c *Condition) Enabled() bool {
	return c.enabled
}

// Comment returns the last client comment.
func (c *Condition) Comment() event.LocalizedText {
	return c.comment
}

// ClientUserID returns the user of the last client call.
func (c *Condition) ClientUserID() string {
	return c.clientUserID
}

// LastActor returns the actor of the last client call.
func (c *Condition) LastActor() *Actor {
	return c.lastActor.Clone()
}

// LastSeverity returns the severity of the last notification.
// The next notification reports it in its LastSeverity field.
func (c *Condition) LastSeverity() uint16 {
	return c.lastSeverity
}

// LastEventID returns the id of the outstanding notification, nil before the first trigger.
func (c *Condition) LastEventID() []byte {
	return bytes.Clone(c.lastEventID)
}

// IsOutstanding reports whether id names the outstanding notification.
func (c *Condition) IsOutstanding(id []byte) bool {
	return len(c.lastEventID) > 0 && bytes.Equal(c.lastEventID, id)
}

// emittedInOccurrence reports whether id was emitted since the current occurrence started.
func (c *Condition) emittedInOccurrence(id []byte) bool {
	if len(id) == 0 {
		return false
	}

	return slices.ContainsFunc(c.occurrence, func(seen []byte) bool {
		return bytes.Equal(seen, id)
	})
}

// startOccurrence forgets the ids of the previous occurrence.
func (c *Condition) startOccurrence() {
	c.occurrence = nil
}

// Trigger emits a notification carrying the condition fields.
func (c *Condition) Trigger(ctx context.Context) error {
	if !c.enabled {
		return ErrConditionDisabled
	}

	_, err := c.emit(ctx)

	return err
}

// Enable moves the condition to the enabled state and notifies.
func (c *Condition) Enable(ctx context.Context) error {
	if c.enabled {
		return ErrAlreadyEnabled
	}

	retain := c.retain
	c.enabled = true
	c.applyRetainPolicy()

	if _, err := c.emit(ctx); err != nil {
		c.enabled = false
		c.retain = retain

		return err
	}

	return nil
}

// Disable moves the condition to the disabled state, clears Retain and notifies.
func (c *Condition) Disable(ctx context.Context) error {
	if !c.enabled {
		return ErrAlreadyDisabled
	}

	retain := c.retain
	c.enabled = false
	c.retain = false

	if _, err := c.emit(ctx); err != nil {
		c.enabled = true
		c.retain = retain

		return err
	}

	return nil
}

// AddComment records a client comment for the outstanding notification and notifies.
func (c *Condition) AddComment(ctx context.Context, eventID []byte, comment event.LocalizedText, actor *Actor) error {
	if !c.enabled {
		return ErrConditionDisabled
	}

	if !c.IsOutstanding(eventID) {
		return ErrInvalidEventID
	}

	prevComment, prevUser, prevActor := c.comment, c.clientUserID, c.lastActor
	c.comment = comment
	c.setActor(actor)

	if _, err := c.emit(ctx); err != nil {
		c.comment, c.clientUserID, c.lastActor = prevComment, prevUser, prevActor

		return err
	}

	return nil
}

// setActor records the caller of a client method.
func (c *Condition) setActor(actor *Actor) {
	c.lastActor = actor.Clone()
	c.clientUserID = actor.ClientUserID()
}

// addContributor registers a subtype field source.
func (c *Condition) addContributor(fn func(fields map[string]any)) {
	c.contributors = append(c.contributors, fn)
}

// applyRetainPolicy recomputes Retain when a policy is installed.
func (c *Condition) applyRetainPolicy() {
	if c.retainPolicy != nil {
		c.retain = c.enabled && c.retainPolicy()
	}
}

// fields collects the condition and subtype fields.
func (c *Condition) fields() map[string]any {
	fields := map[string]any{
		FieldConditionID:   c.id,
		FieldConditionName: c.name,
		FieldBranchID:      c.branchID,
		FieldRetain:        c.retain,
		FieldEnabledState:  c.enabled,
		FieldComment:       c.comment,
		FieldClientUserID:  c.clientUserID,
		FieldLastSeverity:  c.lastSeverity,
	}

	for _, contribute := range c.contributors {
		contribute(fields)
	}

	return fields
}

// Emit triggers a notification with extra fields attached. Condition fields
// take precedence over extra ones and the notification becomes outstanding.
func (c *Condition) Emit(ctx context.Context, extra map[string]any) (*event.Notification, error) {
	if !c.enabled {
		return nil, ErrConditionDisabled
	}

	fields := c.fields()
	for name, value := range extra {
		if _, ok := fields[name]; !ok {
			fields[name] = value
		}
	}

	return c.emitFields(ctx, fields)
}

// emit runs the trigger algorithm and makes the new notification outstanding.
func (c *Condition) emit(ctx context.Context) (*event.Notification, error) {
	return c.emitFields(ctx, c.fields())
}

func (c *Condition) emitFields(ctx context.Context, fields map[string]any) (*event.Notification, error) {
	n, err := c.Record.Emit(ctx, fields)
	if err != nil {
		return nil, err
	}

	c.lastEventID = bytes.Clone(n.EventID)
	c.lastSeverity = n.Severity

	if len(c.occurrence) == maxOccurrenceIDs {
		c.occurrence = c.occurrence[1:]
	}

	c.occurrence = append(c.occurrence, c.lastEventID)

	return n, nil
}
