package addrspace

import (
	"fmt"

	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// NewEvent creates an event of a registered type originating from source.
func (s *Server) NewEvent(source event.NodeID, typeName string) (*event.Record, error) {
	if _, err := s.ResolveType(typeName); err != nil {
		return nil, err
	}

	r := event.NewRecord(s, source, typeName)
	if n, ok := s.Lookup(source); ok {
		r.SetSourceName(n.BrowseName)
	}

	if err := s.own(source, r); err != nil {
		return nil, fmt.Errorf("new event: %w", err)
	}

	return r, nil
}

// NewCondition creates a ConditionType instance as a child node of source.
func (s *Server) NewCondition(source event.NodeID, name string) (*alarm.Condition, error) {
	id, sourceName, err := s.addConditionNode(source, name)
	if err != nil {
		return nil, err
	}

	c := alarm.NewCondition(s, id, source, name)
	c.SetSourceName(sourceName)

	if err := s.ownCondition(source, id, c); err != nil {
		return nil, err
	}

	return c, nil
}

// NewAcknowledgeableCondition creates an AcknowledgeableConditionType instance as a child node of source.
func (s *Server) NewAcknowledgeableCondition(
	source event.NodeID,
	name string,
	opts ...alarm.AckOption,
) (*alarm.AcknowledgeableCondition, error) {
	id, sourceName, err := s.addConditionNode(source, name)
	if err != nil {
		return nil, err
	}

	c := alarm.NewAcknowledgeableCondition(s, id, source, name, opts...)
	c.SetSourceName(sourceName)

	if err := s.ownCondition(source, id, c); err != nil {
		return nil, err
	}

	return c, nil
}

// NewExclusiveLimitAlarm creates an ExclusiveLimitAlarmType instance as a child node of source.
func (s *Server) NewExclusiveLimitAlarm(
	source event.NodeID,
	name string,
	settings alarm.LimitAlarmSettings,
) (*alarm.ExclusiveLimitAlarm, error) {
	if err := settings.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("alarm %q: %w", name, err)
	}

	id, sourceName, err := s.addConditionNode(source, name)
	if err != nil {
		return nil, err
	}

	a, err := alarm.NewExclusiveLimitAlarm(s, id, source, name, settings)
	if err != nil {
		_ = s.RemoveNode(id) //nolint:errcheck // The node was added above.

		return nil, err
	}

	a.SetSourceName(sourceName)

	if err := s.ownCondition(source, id, a); err != nil {
		return nil, err
	}

	return a, nil
}

func (s *Server) addConditionNode(source event.NodeID, name string) (event.NodeID, string, error) {
	n, ok := s.Lookup(source)
	if !ok {
		return "", "", fmt.Errorf("source %s: %w", source, ErrUnknownNode)
	}

	id, err := s.AddObject(source, name)
	if err != nil {
		return "", "", fmt.Errorf("condition %q: %w", name, err)
	}

	return id, n.BrowseName, nil
}

// ownCondition ties a condition to both its own node and its source.
func (s *Server) ownCondition(source, id event.NodeID, d detacher) error {
	if err := s.own(id, d); err != nil {
		return err
	}

	return s.own(source, d)
}
