package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestActorClone verifies that Clone returns a deep copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Actor)(nil).Clone())

	a := &Actor{
		Hostname: "control-room-1",
		Username: "operator",
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
}

// TestActorClientUserID checks the ClientUserId rendering for partial actors.
func TestActorClientUserID(t *testing.T) {
	t.Parallel()

	require.Empty(t, (*Actor)(nil).ClientUserID())
	require.Equal(t, "operator@control-room-1", (&Actor{Hostname: "control-room-1", Username: "operator"}).ClientUserID())
	require.Equal(t, "operator", (&Actor{Username: "operator"}).ClientUserID())
	require.Equal(t, "control-room-1", (&Actor{Hostname: "control-room-1"}).ClientUserID())
}

// TestSnapshotClone verifies that Snapshot.Clone copies fields and deep-copies LastActor.
func TestSnapshotClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Snapshot)(nil).Clone())

	ts := time.Now().UTC().Truncate(time.Second)
	s := Snapshot{
		Name:      "TankLevel",
		Timestamp: ts,
		LastActor: &Actor{
			Hostname: "control-room-1",
			Username: "operator",
		},
		Enabled:    true,
		Acked:      true,
		LimitState: "High",
		Severity:   700,
	}

	c := s.Clone()
	require.Equal(t, s.Timestamp, c.Timestamp)
	require.Equal(t, s.LimitState, c.LimitState)
	require.Equal(t, s.LastActor, c.LastActor)

	// Ensure actor pointer is cloned.
	require.NotSame(t, s.LastActor, c.LastActor)
}
