package alarm

import (
	"time"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// Actor identifies who performed an action on a condition.
type Actor struct {
	// Hostname is the machine name where the action was performed.
	Hostname string
	// Username is the system user who triggered the action.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// ClientUserID renders the actor the way the ClientUserId property expects it.
func (a *Actor) ClientUserID() string {
	if a == nil {
		return ""
	}

	switch {
	case a.Username == "":
		return a.Hostname
	case a.Hostname == "":
		return a.Username
	default:
		return a.Username + "@" + a.Hostname
	}
}

// Snapshot represents the retained state of a condition at a point in time.
type Snapshot struct {
	// Name is the condition name the snapshot belongs to.
	Name string
	// Timestamp is when the condition state was last changed.
	Timestamp time.Time
	// LastActor is the user who last acknowledged, confirmed or commented.
	LastActor *Actor
	// Enabled reflects EnabledState.
	Enabled bool
	// Retain reflects the Retain flag.
	Retain bool
	// Acked reflects AckedState.
	Acked bool
	// Confirmed reflects ConfirmedState.
	Confirmed bool
	// ConfirmAllowed is the confirmation guard.
	ConfirmAllowed bool
	// Active reflects ActiveState of alarms.
	Active bool
	// LimitState is the browse name of the active band, empty when inactive.
	LimitState string
	// Severity is the current severity.
	Severity uint16
	// Comment is the last comment supplied by a client.
	Comment string
	// Value is the last evaluated input value of limit alarms.
	Value float64
}

// Clone returns a copy of the snapshot to avoid leaking internal references.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.LastActor = s.LastActor.Clone()

	return &cloned
}

// Status is a read-only view of a hosted alarm: its snapshot plus identity,
// configuration and the outstanding notification.
type Status struct {
	Snapshot

	// ConditionID is the node id of the condition.
	ConditionID event.NodeID
	// SourceNode is the node notifications originate from.
	SourceNode event.NodeID
	// SourceName is the browse name of the source.
	SourceName string
	// EventID is the id of the outstanding notification, nil before the first one.
	EventID []byte
	// Message is the current message.
	Message string
	// LastSeverity is the severity of the last notification.
	LastSeverity uint16
	// Limits are the configured thresholds.
	Limits Limits
	// Deadband is the configured hysteresis.
	Deadband float64
}
