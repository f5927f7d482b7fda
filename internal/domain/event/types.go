package event

import (
	"bytes"
	"context"
	"maps"
	"time"
)

// NodeID identifies a node of the address space. The empty value is the null node id.
type NodeID string

// IsNull reports whether the id is the null node id.
func (id NodeID) IsNull() bool {
	return id == ""
}

// String returns the textual form of the id.
func (id NodeID) String() string {
	return string(id)
}

// LocalizedText is a human-readable text with an optional locale.
type LocalizedText struct {
	// Locale is the RFC 3066 locale of Text, may be empty.
	Locale string
	// Text is the human-readable text.
	Text string
}

// Text builds a LocalizedText without a locale.
func Text(s string) LocalizedText {
	return LocalizedText{Text: s}
}

// String returns the text part.
func (t LocalizedText) String() string {
	return t.Text
}

const (
	// MinSeverity marks a purely informational event.
	MinSeverity uint16 = 1
	// MaxSeverity marks an event of catastrophic nature.
	MaxSeverity uint16 = 1000
)

// ValidateSeverity checks that v lies in [MinSeverity, MaxSeverity].
func ValidateSeverity(v uint16) error {
	if v < MinSeverity || v > MaxSeverity {
		return ErrInvalidSeverity
	}

	return nil
}

// Runtime is the server side an event instance is attached to.
// It supplies timestamps, identity, type resolution and the dispatch hand-off.
type Runtime interface {
	// Now returns the current UTC time.
	Now() time.Time
	// NewEventID returns a byte string unique for the lifetime of the process.
	NewEventID() []byte
	// ResolveType returns the node id registered for an event type browse name.
	ResolveType(typeName string) (NodeID, error)
	// ResolveNode reports whether a node is still part of the address space.
	ResolveNode(id NodeID) bool
	// Dispatch hands a populated notification to subscribers without waiting for delivery.
	Dispatch(ctx context.Context, n *Notification)
}

// Notification is the snapshot of a record taken at trigger time.
type Notification struct {
	// EventID identifies this particular notification.
	EventID []byte
	// EventType is the node id of the concrete event type.
	EventType NodeID
	// TypeName is the browse name of the concrete event type.
	TypeName string
	// SourceNode is the node the event originated from, null for generic events.
	SourceNode NodeID
	// SourceName describes the source of the event.
	SourceName string
	// Time is when the event occurred in the real world.
	Time time.Time
	// ReceiveTime is when the server captured the event.
	ReceiveTime time.Time
	// Message is the human-readable description of the event.
	Message LocalizedText
	// Severity is the urgency of the event, 1 to 1000.
	Severity uint16
	// Fields holds the properties contributed by event subtypes.
	Fields map[string]any
}

// Clone returns a deep copy of the notification.
func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}

	cloned := *n
	cloned.EventID = bytes.Clone(n.EventID)
	cloned.Fields = maps.Clone(n.Fields)

	return &cloned
}

// Field returns a subtype field by browse name, nil when absent.
func (n *Notification) Field(name string) any {
	if n == nil {
		return nil
	}

	return n.Fields[name]
}
