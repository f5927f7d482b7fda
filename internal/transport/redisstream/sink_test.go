package redisstream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/opcua-alarms/internal/codec"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// TestSink_Send appends stream entries that decode back to the notification.
func TestSink_Send(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr := miniredis.RunT(t)

	sink, err := New(ctx, Options{Addr: mr.Addr(), Stream: "ua:events"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = sink.Close() })

	n := &event.Notification{
		EventID:     []byte{0xca, 0xfe},
		EventType:   "i=2041",
		TypeName:    event.TypeBaseEvent,
		SourceNode:  "ns=1;s=Tank",
		SourceName:  "Tank",
		Time:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ReceiveTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Message:     event.Text("overflow"),
		Severity:    800,
	}

	require.NoError(t, sink.Send(ctx, n))
	require.NoError(t, sink.Send(ctx, n))

	entries, err := mr.Stream("ua:events")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	values := make(map[string]string)
	for i := 0; i+1 < len(entries[0].Values); i += 2 {
		values[entries[0].Values[i]] = entries[0].Values[i+1]
	}

	require.Equal(t, "cafe", values[FieldEventID])
	require.Equal(t, "Tank", values[FieldSourceName])
	require.Equal(t, "800", values[FieldSeverity])

	decoded, err := codec.Unmarshal([]byte(values[FieldData]))
	require.NoError(t, err)
	require.Equal(t, "overflow", decoded.Message.Text)
	require.Equal(t, "redis", sink.Name())
}

// TestNew_Unreachable fails fast when Redis is down.
func TestNew_Unreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Options{Addr: addr, Stream: "ua:events"})
	require.Error(t, err)
}
