package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

func entry(id byte, source, condition string, received time.Time) *event.Notification {
	return &event.Notification{
		EventID:     []byte{id},
		EventType:   "i=9341",
		TypeName:    alarm.TypeExclusiveLimitAlarm,
		SourceNode:  event.NodeID("ns=1;s=" + source),
		SourceName:  source,
		Time:        received,
		ReceiveTime: received,
		Message:     event.Text("level changed"),
		Severity:    uint16(100 * int(id)),
		Fields: map[string]any{
			alarm.FieldConditionName: condition,
			alarm.FieldRetain:        true,
		},
	}
}

func openTemp(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = j.Close() })

	return j
}

// TestJournal_SendList appends notifications and reads them back filtered, newest first.
func TestJournal_SendList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j := openTemp(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Send(ctx, entry(1, "Tank", "LevelAlarm", base)))
	require.NoError(t, j.Send(ctx, entry(2, "Pump", "Overheat", base.Add(time.Second))))
	require.NoError(t, j.Send(ctx, entry(3, "Tank", "LevelAlarm", base.Add(2*time.Second))))

	all, err := j.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []byte{3}, all[0].EventID)
	require.Equal(t, []byte{1}, all[2].EventID)

	tank, err := j.List(ctx, Query{SourceName: "Tank"})
	require.NoError(t, err)
	require.Len(t, tank, 2)
	require.Equal(t, uint16(300), tank[0].Severity)
	require.Equal(t, "level changed", tank[0].Message.Text)
	require.Equal(t, true, tank[0].Fields[alarm.FieldRetain])

	overheat, err := j.List(ctx, Query{ConditionName: "Overheat"})
	require.NoError(t, err)
	require.Len(t, overheat, 1)
	require.Equal(t, "Pump", overheat[0].SourceName)

	recent, err := j.List(ctx, Query{Since: base.Add(time.Second), Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, []byte{3}, recent[0].EventID)

	// Event ids are unique.
	require.Error(t, j.Send(ctx, entry(1, "Tank", "LevelAlarm", base)))
	require.Equal(t, "journal", j.Name())
}

// TestJournal_Reopen keeps entries across connections.
func TestJournal_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, j.Send(ctx, entry(1, "Tank", "LevelAlarm", time.Now())))
	require.NoError(t, j.Close())

	j, err = Open(ctx, path)
	require.NoError(t, err)

	defer func() { _ = j.Close() }()

	got, err := j.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = Open(ctx, "  ")
	require.ErrorIs(t, err, ErrEmptyDSN)
}

// TestRebind rewrites placeholders for PostgreSQL only.
func TestRebind(t *testing.T) {
	t.Parallel()

	pg := &Journal{dialect: dialectPostgres}
	require.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &Journal{dialect: dialectSQLite}
	require.Equal(t, "a = ?", lite.rebind("a = ?"))
}
