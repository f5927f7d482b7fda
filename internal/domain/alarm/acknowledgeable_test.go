package alarm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

var operator = &Actor{Hostname: "control-room-1", Username: "operator"}

func newTankCondition(t *testing.T, rt *fakeRuntime, opts ...AckOption) *AcknowledgeableCondition {
	t.Helper()

	c := NewAcknowledgeableCondition(rt, "ns=1;s=Tank/LevelCondition", "ns=1;s=Tank", "LevelCondition", opts...)
	c.SetSourceName("TankLevel")
	c.SetMessage(event.Text("High level"))
	require.NoError(t, c.SetSeverity(500))
	c.SetRetain(true)

	return c
}

// TestAcknowledgeableCondition_EndToEnd walks trigger, acknowledge and confirm with their notifications.
func TestAcknowledgeableCondition_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := newFakeRuntime()
	c := newTankCondition(t, rt)

	require.Equal(t, Unacknowledged, c.AckState())
	require.NoError(t, c.Trigger(ctx))
	require.Len(t, rt.dispatched, 1)

	first := rt.dispatched[0]
	require.NotEmpty(t, first.EventID)
	require.Equal(t, uint16(500), first.Severity)
	require.Equal(t, rt.now, first.ReceiveTime)
	require.Equal(t, event.NodeID("type=AcknowledgeableConditionType"), first.EventType)
	require.Equal(t, event.NodeID("ns=1;s=Tank"), first.SourceNode)
	require.Equal(t, event.NodeID("ns=1;s=Tank/LevelCondition"), first.Fields[FieldConditionID])
	require.Equal(t, false, first.Fields[FieldAckedState])

	require.NoError(t, c.Acknowledge(ctx, first.EventID, event.Text("ack by operator"), operator))
	require.Equal(t, Acknowledged, c.AckState())
	require.Len(t, rt.dispatched, 2)

	second := rt.dispatched[1]
	require.NotEqual(t, first.EventID, second.EventID)
	require.Equal(t, true, second.Fields[FieldAckedState])
	require.Equal(t, event.Text("ack by operator"), second.Fields[FieldComment])
	require.Equal(t, "operator@control-room-1", second.Fields[FieldClientUserID])
	require.Equal(t, "High level", second.Message.Text)

	c.SetConfirmAllowed(true)
	require.NoError(t, c.Confirm(ctx, second.EventID, event.Text("confirmed"), operator))
	require.Equal(t, Confirmed, c.AckState())
	require.Len(t, rt.dispatched, 3)

	third := rt.dispatched[2]
	require.Equal(t, true, third.Fields[FieldConfirmedState])
	// Acknowledged, confirmed and not backed by an active alarm: no longer retained.
	require.Equal(t, false, third.Fields[FieldRetain])
	require.False(t, c.Retain())
}

// TestAcknowledgeableCondition_ConfirmGuards checks NotAcknowledged and ConfirmNotAllowed.
func TestAcknowledgeableCondition_ConfirmGuards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := newFakeRuntime()
	c := newTankCondition(t, rt, WithConfirmAllowed(false))
	require.False(t, c.ConfirmAllowed())
	require.NoError(t, c.Trigger(ctx))

	id := c.LastEventID()
	require.ErrorIs(t, c.Confirm(ctx, id, event.Text(""), operator), ErrNotAcknowledged)
	require.Equal(t, Unacknowledged, c.AckState())

	require.NoError(t, c.Acknowledge(ctx, id, event.Text("ack"), operator))

	id = c.LastEventID()
	require.ErrorIs(t, c.Confirm(ctx, id, event.Text(""), operator), ErrConfirmNotAllowed)
	require.Equal(t, Acknowledged, c.AckState())
	require.Len(t, rt.dispatched, 2)

	c.SetConfirmAllowed(true)
	require.NoError(t, c.Confirm(ctx, id, event.Text(""), operator))
	require.Equal(t, Confirmed, c.AckState())

	id = c.LastEventID()
	require.ErrorIs(t, c.Confirm(ctx, id, event.Text(""), operator), ErrAlreadyConfirmed)
}

// TestAcknowledgeableCondition_ReacknowledgeFails ensures re-acknowledgment is rejected and state is kept.
func TestAcknowledgeableCondition_ReacknowledgeFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := newFakeRuntime()
	c := newTankCondition(t, rt)
	require.NoError(t, c.Trigger(ctx))
	require.NoError(t, c.Acknowledge(ctx, c.LastEventID(), event.Text("ack"), operator))

	err := c.Acknowledge(ctx, c.LastEventID(), event.Text("again"), operator)
	require.ErrorIs(t, err, ErrAlreadyAcknowledged)
	require.Equal(t, Acknowledged, c.AckState())
	require.Equal(t, "ack", c.Comment().Text)
	require.Len(t, rt.dispatched, 2)
}

// TestAcknowledgeableCondition_RepeatWithAcknowledgedID reports the duplicate instead of a stale id.
func TestAcknowledgeableCondition_RepeatWithAcknowledgedID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := newFakeRuntime()
	c := newTankCondition(t, rt)
	require.NoError(t, c.Trigger(ctx))

	first := c.LastEventID()
	require.NoError(t, c.Acknowledge(ctx, first, event.Text("ack"), operator))
	require.False(t, c.IsOutstanding(first))

	err := c.Acknowledge(ctx, first, event.Text("ack twice"), operator)
	require.ErrorIs(t, err, ErrAlreadyAcknowledged)
	require.Equal(t, "ack", c.Comment().Text)

	acked := c.LastEventID()
	require.NoError(t, c.Confirm(ctx, acked, event.Text("done"), operator))

	require.ErrorIs(t, c.Confirm(ctx, acked, event.Text(""), operator), ErrAlreadyConfirmed)
	require.ErrorIs(t, c.Confirm(ctx, first, event.Text(""), operator), ErrAlreadyConfirmed)
	require.ErrorIs(t, c.Acknowledge(ctx, first, event.Text(""), operator), ErrAlreadyAcknowledged)
	require.Equal(t, Confirmed, c.AckState())
	require.Len(t, rt.dispatched, 3)

	// A new occurrence forgets the ids of the previous one.
	c.Rearm()
	require.ErrorIs(t, c.Acknowledge(ctx, first, event.Text(""), operator), ErrInvalidEventID)
	require.ErrorIs(t, c.Acknowledge(ctx, []byte("bogus"), event.Text(""), operator), ErrInvalidEventID)
}

// TestAcknowledgeableCondition_InvalidEventID verifies mismatched ids cause no state change.
func TestAcknowledgeableCondition_InvalidEventID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := newFakeRuntime()
	c := newTankCondition(t, rt)

	// Nothing outstanding before the first trigger.
	require.ErrorIs(t, c.Acknowledge(ctx, nil, event.Text(""), operator), ErrInvalidEventID)

	require.NoError(t, c.Trigger(ctx))
	stale := c.LastEventID()
	require.NoError(t, c.Trigger(ctx))

	require.ErrorIs(t, c.Acknowledge(ctx, stale, event.Text(""), operator), ErrInvalidEventID)
	require.ErrorIs(t, c.Acknowledge(ctx, []byte("bogus"), event.Text(""), operator), ErrInvalidEventID)
	require.ErrorIs(t, c.Confirm(ctx, stale, event.Text(""), operator), ErrInvalidEventID)
	require.Equal(t, Unacknowledged, c.AckState())
	require.Len(t, rt.dispatched, 2)
}

// TestAcknowledgeableCondition_FailedNotificationRollsBack keeps state when the follow-up cannot be emitted.
func TestAcknowledgeableCondition_FailedNotificationRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := newFakeRuntime()
	c := newTankCondition(t, rt)
	require.NoError(t, c.Trigger(ctx))

	rt.detached = true

	err := c.Acknowledge(ctx, c.LastEventID(), event.Text("ack"), operator)
	require.ErrorIs(t, err, event.ErrNotAttached)
	require.Equal(t, Unacknowledged, c.AckState())
	require.Empty(t, c.ClientUserID())
	require.True(t, c.Retain())
}

// TestAcknowledgeableCondition_Rearm resets the workflow for a new occurrence.
func TestAcknowledgeableCondition_Rearm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := newFakeRuntime()
	c := newTankCondition(t, rt, WithConfirmAllowed(false))
	require.NoError(t, c.Trigger(ctx))
	require.NoError(t, c.Acknowledge(ctx, c.LastEventID(), event.Text("ack"), operator))
	require.False(t, c.Retain())

	c.Rearm()
	require.Equal(t, Unacknowledged, c.AckState())
	require.True(t, c.Retain())
}

// TestAcknowledgeableCondition_Disabled rejects workflow calls on a disabled condition.
func TestAcknowledgeableCondition_Disabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rt := newFakeRuntime()
	c := newTankCondition(t, rt)
	require.NoError(t, c.Trigger(ctx))
	require.NoError(t, c.Disable(ctx))

	id := c.LastEventID()
	require.ErrorIs(t, c.Acknowledge(ctx, id, event.Text(""), operator), ErrConditionDisabled)
	require.ErrorIs(t, c.Confirm(ctx, id, event.Text(""), operator), ErrConditionDisabled)

	require.NoError(t, c.Enable(ctx))
	require.True(t, c.Retain())
	require.NoError(t, c.Acknowledge(ctx, c.LastEventID(), event.Text(""), operator))
}

// TestAckStateString covers the state names.
func TestAckStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Unacknowledged", Unacknowledged.String())
	require.Equal(t, "Acknowledged", Acknowledged.String())
	require.Equal(t, "Confirmed", Confirmed.String())
}
