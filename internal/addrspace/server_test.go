package addrspace

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// memoryDispatcher collects dispatched notifications.
type memoryDispatcher struct {
	got []*event.Notification
}

func (d *memoryDispatcher) Dispatch(_ context.Context, n *event.Notification) {
	d.got = append(d.got, n)
}

// TestServer_Nodes covers adding, browsing, looking up and removing objects.
func TestServer_Nodes(t *testing.T) {
	t.Parallel()

	s := New()

	tank, err := s.AddObject(ObjectsFolder, "Tank")
	require.NoError(t, err)
	require.Equal(t, event.NodeID("ns=1;s=Tank"), tank)

	level, err := s.AddObject(tank, "Level")
	require.NoError(t, err)
	require.Equal(t, event.NodeID("ns=1;s=Tank/Level"), level)

	_, err = s.AddObject(tank, "Level")
	require.ErrorIs(t, err, ErrNodeExists)

	_, err = s.AddObject(tank, "a/b")
	require.ErrorIs(t, err, ErrInvalidBrowseName)

	_, err = s.AddObject("ns=1;s=Missing", "x")
	require.ErrorIs(t, err, ErrUnknownNode)

	_, err = s.AddObject(tank, "Inlet")
	require.NoError(t, err)

	children := s.Browse(tank)
	require.Len(t, children, 2)
	require.Equal(t, "Inlet", children[0].BrowseName)
	require.Equal(t, "Level", children[1].BrowseName)

	n, ok := s.Lookup(level)
	require.True(t, ok)
	require.Equal(t, tank, n.Parent)

	require.NoError(t, s.RemoveNode(tank))
	require.False(t, s.ResolveNode(tank))
	require.False(t, s.ResolveNode(level))
	require.Empty(t, s.Browse(ObjectsFolder))
	require.ErrorIs(t, s.RemoveNode(tank), ErrUnknownNode)
	require.Error(t, s.RemoveNode(ObjectsFolder))
}

// TestServer_Types covers the standard types and registration of custom ones.
func TestServer_Types(t *testing.T) {
	t.Parallel()

	s := New()

	id, err := s.ResolveType(alarm.TypeExclusiveLimitAlarm)
	require.NoError(t, err)
	require.Equal(t, event.NodeID("i=9341"), id)

	id, err = s.ResolveType(event.TypeBaseEvent)
	require.NoError(t, err)
	require.Equal(t, event.NodeID("i=2041"), id)

	_, err = s.ResolveType("TankOverflowEventType")
	require.ErrorIs(t, err, ErrUnknownType)

	require.NoError(t, s.RegisterType("TankOverflowEventType", "ns=1;i=5001", event.TypeBaseEvent))
	require.ErrorIs(t, s.RegisterType("TankOverflowEventType", "ns=1;i=5002", event.TypeBaseEvent), ErrTypeExists)
	require.ErrorIs(t, s.RegisterType("Other", "ns=1;i=5003", "Missing"), ErrUnknownType)

	require.True(t, s.IsSubtype(alarm.TypeExclusiveLimitAlarm, alarm.TypeAcknowledgeableCondition))
	require.True(t, s.IsSubtype("TankOverflowEventType", event.TypeBaseEvent))
	require.False(t, s.IsSubtype(alarm.TypeCondition, alarm.TypeAcknowledgeableCondition))
}

// TestServer_ClockIsMonotonic guards against a wall clock stepping back.
func TestServer_ClockIsMonotonic(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	readings := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}

	s := New(WithClock(func() time.Time {
		next := readings[0]
		readings = readings[1:]

		return next
	}))

	first := s.Now()
	require.Equal(t, time.UTC, first.Location())
	require.True(t, base.Equal(first))
	require.True(t, base.Equal(s.Now()))
	require.True(t, base.Add(time.Second).Equal(s.Now()))
}

// TestServer_EventLifecycle triggers an event and detaches it with its source.
func TestServer_EventLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := new(memoryDispatcher)
	s := New(WithDispatcher(d))

	tank, err := s.AddObject(ObjectsFolder, "Tank")
	require.NoError(t, err)

	_, err = s.NewEvent(tank, "Missing")
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = s.NewEvent("ns=1;s=Missing", event.TypeBaseEvent)
	require.ErrorIs(t, err, ErrUnknownNode)

	e, err := s.NewEvent(tank, event.TypeBaseEvent)
	require.NoError(t, err)
	require.Equal(t, "Tank", e.SourceName())

	require.NoError(t, e.Trigger(ctx))
	require.NoError(t, e.Trigger(ctx))
	require.Len(t, d.got, 2)
	require.Len(t, d.got[0].EventID, 16)
	require.NotEqual(t, d.got[0].EventID, d.got[1].EventID)
	require.Equal(t, tank, d.got[0].SourceNode)
	require.Equal(t, event.NodeID("i=2041"), d.got[0].EventType)

	require.NoError(t, s.RemoveNode(tank))
	require.False(t, e.Attached())
	require.ErrorIs(t, e.Trigger(ctx), event.ErrNotAttached)
	require.Len(t, d.got, 2)
}

// TestServer_ConditionFactories creates conditions as children of their source.
func TestServer_ConditionFactories(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := new(memoryDispatcher)

	var seq uint64

	s := New(WithDispatcher(d), WithEventIDs(func() []byte {
		seq++

		id := make([]byte, 8)
		binary.BigEndian.PutUint64(id, seq)

		return id
	}))

	tank, err := s.AddObject(ObjectsFolder, "Tank")
	require.NoError(t, err)

	c, err := s.NewCondition(tank, "Maintenance")
	require.NoError(t, err)
	require.Equal(t, event.NodeID("ns=1;s=Tank/Maintenance"), c.ConditionID())
	require.NoError(t, c.Trigger(ctx))
	require.Equal(t, event.NodeID("i=2782"), d.got[0].EventType)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, d.got[0].EventID)

	ack, err := s.NewAcknowledgeableCondition(tank, "Leak", alarm.WithConfirmAllowed(false))
	require.NoError(t, err)
	require.False(t, ack.ConfirmAllowed())
	require.Equal(t, "Tank", ack.SourceName())

	_, err = s.NewCondition(tank, "Leak")
	require.ErrorIs(t, err, ErrNodeExists)

	high := 80.0
	a, err := s.NewExclusiveLimitAlarm(tank, "LevelAlarm", alarm.LimitAlarmSettings{
		Limits: alarm.Limits{High: &high},
	})
	require.NoError(t, err)

	changed, err := a.Evaluate(ctx, 81)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, event.NodeID("i=9341"), d.got[len(d.got)-1].EventType)

	_, err = s.NewExclusiveLimitAlarm(tank, "Broken", alarm.LimitAlarmSettings{})
	require.ErrorIs(t, err, alarm.ErrNoLimits)
	require.False(t, s.ResolveNode("ns=1;s=Tank/Broken"))

	_, err = s.NewExclusiveLimitAlarm(tank, "Negative", alarm.LimitAlarmSettings{
		Limits:   alarm.Limits{High: &high},
		Deadband: -1,
	})
	require.ErrorIs(t, err, alarm.ErrNegativeDeadband)
	require.False(t, s.ResolveNode("ns=1;s=Tank/Negative"))

	// Removing only the condition node detaches the condition.
	require.NoError(t, s.RemoveNode(c.ConditionID()))
	require.ErrorIs(t, c.Trigger(ctx), event.ErrNotAttached)
	require.NoError(t, ack.Trigger(ctx))
}
