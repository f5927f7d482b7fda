package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

func sampleNotification() *event.Notification {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)

	return &event.Notification{
		EventID:     []byte{0xde, 0xad, 0xbe, 0xef},
		EventType:   "i=9341",
		TypeName:    alarm.TypeExclusiveLimitAlarm,
		SourceNode:  "ns=1;s=Tank",
		SourceName:  "Tank",
		Time:        ts,
		ReceiveTime: ts.Add(time.Millisecond),
		Message:     event.LocalizedText{Locale: "en", Text: "Tank level: High limit 80 crossed (85)"},
		Severity:    700,
		Fields: map[string]any{
			alarm.FieldConditionID:  event.NodeID("ns=1;s=Tank/LevelAlarm"),
			alarm.FieldRetain:       true,
			alarm.FieldComment:      event.Text("checked"),
			alarm.FieldLastSeverity: uint16(100),
			alarm.FieldInputValue:   85.0,
			alarm.FieldLimitState:   "High",
		},
	}
}

// TestMarshalUnmarshal verifies that notification properties survive protojson encoding.
func TestMarshalUnmarshal(t *testing.T) {
	t.Parallel()

	n := sampleNotification()

	data, err := Marshal(n)
	require.NoError(t, err)
	require.Contains(t, string(data), `"eventId":"deadbeef"`)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, n.EventID, got.EventID)
	require.Equal(t, n.EventType, got.EventType)
	require.Equal(t, n.TypeName, got.TypeName)
	require.Equal(t, n.SourceNode, got.SourceNode)
	require.Equal(t, n.SourceName, got.SourceName)
	require.True(t, n.Time.Equal(got.Time))
	require.True(t, n.ReceiveTime.Equal(got.ReceiveTime))
	require.Equal(t, n.Message, got.Message)
	require.Equal(t, n.Severity, got.Severity)

	require.Equal(t, "ns=1;s=Tank/LevelAlarm", got.Fields[alarm.FieldConditionID])
	require.Equal(t, true, got.Fields[alarm.FieldRetain])
	require.Equal(t, event.Text("checked"), got.Fields[alarm.FieldComment])
	require.Equal(t, 100.0, got.Fields[alarm.FieldLastSeverity])
	require.Equal(t, 85.0, got.Fields[alarm.FieldInputValue])
}

// TestEncodeRejectsUnsupportedValues reports the offending field.
func TestEncodeRejectsUnsupportedValues(t *testing.T) {
	t.Parallel()

	n := sampleNotification()
	n.Fields["Callback"] = func() {}

	_, err := Encode(n)
	require.ErrorIs(t, err, ErrUnsupportedValue)
	require.ErrorContains(t, err, "Callback")

	_, err = Encode(nil)
	require.ErrorIs(t, err, ErrNilMessage)

	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrNilMessage)

	_, err = Unmarshal([]byte("{"))
	require.Error(t, err)
}

// TestEventID covers the hex representation of event ids.
func TestEventID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "00ff10", EncodeEventID([]byte{0x00, 0xff, 0x10}))

	id, err := DecodeEventID("00ff10")
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0xff, 0x10}, id)

	_, err = DecodeEventID("xyz")
	require.Error(t, err)
}

// TestStatusRoundtrip verifies the condition view used by the API.
func TestStatusRoundtrip(t *testing.T) {
	t.Parallel()

	high, highHigh := 80.0, 90.0
	st := &alarm.Status{
		Snapshot: alarm.Snapshot{
			Name:           "LevelAlarm",
			Timestamp:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			LastActor:      &alarm.Actor{Hostname: "control-room-1", Username: "operator"},
			Enabled:        true,
			Retain:         true,
			Acked:          true,
			ConfirmAllowed: true,
			Active:         true,
			LimitState:     "High",
			Severity:       700,
			Comment:        "seen",
			Value:          85,
		},
		ConditionID:  "ns=1;s=Tank/LevelAlarm",
		SourceNode:   "ns=1;s=Tank",
		SourceName:   "Tank",
		EventID:      []byte{1, 2, 3},
		Message:      "Tank level: High limit 80 crossed (85)",
		LastSeverity: 100,
		Limits:       alarm.Limits{High: &high, HighHigh: &highHigh},
		Deadband:     1.5,
	}

	encoded := EncodeStatus(st)
	require.Equal(t, "operator@control-room-1", encoded.GetFields()[KeyClientUserID].GetStringValue())

	got, err := DecodeStatus(encoded)
	require.NoError(t, err)
	require.Equal(t, st, got)

	snapshot, err := DecodeSnapshot(EncodeSnapshot(nil))
	require.NoError(t, err)
	require.Equal(t, &alarm.Snapshot{}, snapshot)
}
