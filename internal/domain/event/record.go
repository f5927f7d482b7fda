package event

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"time"
)

// Browse names of the BaseEventType properties.
const (
	PropertyEventID     = "EventId"
	PropertyEventType   = "EventType"
	PropertySourceNode  = "SourceNode"
	PropertySourceName  = "SourceName"
	PropertyTime        = "Time"
	PropertyReceiveTime = "ReceiveTime"
	PropertyMessage     = "Message"
	PropertySeverity    = "Severity"
)

// TypeBaseEvent is the browse name of the base event type.
const TypeBaseEvent = "BaseEventType"

var (
	// ErrNotAttached is returned when a record is used without a live runtime or node.
	ErrNotAttached = errors.New("event is not attached to a server node")
	// ErrInvalidSeverity is returned for a severity outside [1, 1000].
	ErrInvalidSeverity = errors.New("severity must be between 1 and 1000")
	// ErrReadOnlyProperty is returned when writing a property the server sets itself.
	ErrReadOnlyProperty = errors.New("property is set by the server and cannot be written")
	// ErrUnknownProperty is returned for a browse name the event does not carry.
	ErrUnknownProperty = errors.New("unknown event property")
	// ErrPropertyType is returned when a property value has the wrong type.
	ErrPropertyType = errors.New("wrong property value type")
)

// Record is an instance of BaseEventType.
type Record struct {
	// runtime supplies identity, time and dispatch; nil while detached.
	runtime Runtime
	// node is the address space node the record is attached to.
	node NodeID
	// typeName is the browse name of the concrete event type.
	typeName string

	eventID     []byte
	eventType   NodeID
	sourceNode  NodeID
	sourceName  string
	time        time.Time
	receiveTime time.Time
	message     LocalizedText
	severity    uint16

	// timeSet is true when the caller set time since the last trigger.
	timeSet bool
}

// NewRecord creates a record of the given type attached to node of rt.
// A nil rt leaves the record detached until Attach is called.
func NewRecord(rt Runtime, node NodeID, typeName string) *Record {
	if typeName == "" {
		typeName = TypeBaseEvent
	}

	return &Record{
		runtime:  rt,
		node:     node,
		typeName: typeName,
		severity: MinSeverity,
	}
}

// Attach binds the record to a runtime and the node it originates from.
func (r *Record) Attach(rt Runtime, node NodeID) {
	r.runtime = rt
	r.node = node
}

// Detach unbinds the record; further triggers fail with ErrNotAttached.
func (r *Record) Detach() {
	r.runtime = nil
}

// Attached reports whether the record has a runtime.
func (r *Record) Attached() bool {
	return r.runtime != nil
}

// Node returns the node the record is attached to.
func (r *Record) Node() NodeID {
	return r.node
}

// TypeName returns the browse name of the concrete event type.
func (r *Record) TypeName() string {
	return r.typeName
}

// EventID returns the id generated by the last trigger.
func (r *Record) EventID() []byte {
	return bytes.Clone(r.eventID)
}

// EventType returns the type node id resolved by the last trigger.
func (r *Record) EventType() NodeID {
	return r.eventType
}

// SourceNode returns the node resolved by the last trigger.
func (r *Record) SourceNode() NodeID {
	return r.sourceNode
}

// SourceName returns the description of the event source.
func (r *Record) SourceName() string {
	return r.sourceName
}

// SetSourceName sets the description of the event source.
func (r *Record) SetSourceName(name string) {
	r.sourceName = name
}

// Time returns when the event occurred.
func (r *Record) Time() time.Time {
	return r.time
}

// SetTime sets when the event occurred. The value is stored in UTC and
// applies to the next trigger; without it the trigger uses the receive time.
func (r *Record) SetTime(t time.Time) {
	r.time = t.UTC()
	r.timeSet = !t.IsZero()
}

// ReceiveTime returns when the server captured the last triggered event.
func (r *Record) ReceiveTime() time.Time {
	return r.receiveTime
}

// Message returns the human-readable description.
func (r *Record) Message() LocalizedText {
	return r.message
}

// SetMessage sets the human-readable description.
func (r *Record) SetMessage(msg LocalizedText) {
	r.message = msg
}

// Severity returns the urgency of the event.
func (r *Record) Severity() uint16 {
	return r.severity
}

// SetSeverity sets the urgency of the event. Out-of-range values are rejected.
func (r *Record) SetSeverity(v uint16) error {
	if err := ValidateSeverity(v); err != nil {
		return fmt.Errorf("set severity %d: %w", v, err)
	}

	r.severity = v

	return nil
}

// Property reads a property by browse name.
func (r *Record) Property(name string) (any, bool) {
	switch name {
	case PropertyEventID:
		return r.EventID(), true
	case PropertyEventType:
		return r.eventType, true
	case PropertySourceNode:
		return r.sourceNode, true
	case PropertySourceName:
		return r.sourceName, true
	case PropertyTime:
		return r.time, true
	case PropertyReceiveTime:
		return r.receiveTime, true
	case PropertyMessage:
		return r.message, true
	case PropertySeverity:
		return r.severity, true
	default:
		return nil, false
	}
}

// SetProperty writes a property by browse name.
// Server-managed properties are rejected with ErrReadOnlyProperty.
func (r *Record) SetProperty(name string, value any) error {
	switch name {
	case PropertyEventID, PropertyEventType, PropertySourceNode, PropertyReceiveTime:
		return fmt.Errorf("%s: %w", name, ErrReadOnlyProperty)
	case PropertySourceName:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s: %w", name, ErrPropertyType)
		}

		r.SetSourceName(v)
	case PropertyTime:
		v, ok := value.(time.Time)
		if !ok {
			return fmt.Errorf("%s: %w", name, ErrPropertyType)
		}

		r.SetTime(v)
	case PropertyMessage:
		switch v := value.(type) {
		case LocalizedText:
			r.SetMessage(v)
		case string:
			r.SetMessage(Text(v))
		default:
			return fmt.Errorf("%s: %w", name, ErrPropertyType)
		}
	case PropertySeverity:
		v, ok := value.(uint16)
		if !ok {
			return fmt.Errorf("%s: %w", name, ErrPropertyType)
		}

		return r.SetSeverity(v)
	default:
		return fmt.Errorf("%s: %w", name, ErrUnknownProperty)
	}

	return nil
}

// Trigger stamps eventId, eventType, sourceNode and receiveTime and dispatches the event.
func (r *Record) Trigger(ctx context.Context) error {
	_, err := r.Emit(ctx, nil)

	return err
}

// Emit runs the trigger algorithm with extra subtype fields attached to the notification.
// The returned notification is the snapshot handed to the runtime.
// On error the record is left untouched.
func (r *Record) Emit(ctx context.Context, fields map[string]any) (*Notification, error) {
	if r.runtime == nil {
		return nil, ErrNotAttached
	}

	if !r.node.IsNull() && !r.runtime.ResolveNode(r.node) {
		return nil, fmt.Errorf("node %s: %w", r.node, ErrNotAttached)
	}

	// A zero-value Record carries severity 0.
	if err := ValidateSeverity(r.severity); err != nil {
		return nil, err
	}

	eventType, err := r.runtime.ResolveType(r.typeName)
	if err != nil {
		return nil, fmt.Errorf("resolve event type %q: %w", r.typeName, err)
	}

	receiveTime := r.runtime.Now().UTC()
	if receiveTime.Before(r.receiveTime) {
		receiveTime = r.receiveTime
	}

	r.eventID = r.runtime.NewEventID()
	r.eventType = eventType
	r.sourceNode = r.node
	r.receiveTime = receiveTime

	if !r.timeSet {
		r.time = receiveTime
	}

	r.timeSet = false

	n := r.snapshot(fields)
	r.runtime.Dispatch(ctx, n.Clone())

	return n, nil
}

// snapshot copies the current properties into a notification.
func (r *Record) snapshot(fields map[string]any) *Notification {
	return &Notification{
		EventID:     bytes.Clone(r.eventID),
		EventType:   r.eventType,
		TypeName:    r.typeName,
		SourceNode:  r.sourceNode,
		SourceName:  r.sourceName,
		Time:        r.time,
		ReceiveTime: r.receiveTime,
		Message:     r.message,
		Severity:    r.severity,
		Fields:      maps.Clone(fields),
	}
}
