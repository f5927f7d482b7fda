package codec

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/opcua-alarms/internal/domain/alarm"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// Keys of the condition status document.
const (
	KeyName           = "name"
	KeyConditionID    = "conditionId"
	KeyTimestamp      = "timestamp"
	KeyLastActor      = "lastActor"
	KeyHostname       = "hostname"
	KeyUsername       = "username"
	KeyClientUserID   = "clientUserId"
	KeyEnabled        = "enabled"
	KeyRetain         = "retain"
	KeyAcked          = "acked"
	KeyConfirmed      = "confirmed"
	KeyConfirmAllowed = "confirmAllowed"
	KeyActive         = "active"
	KeyLimitState     = "limitState"
	KeyComment        = "comment"
	KeyValue          = "value"
	KeyLastSeverity   = "lastSeverity"
	KeyLimits         = "limits"
	KeyDeadband       = "deadband"
	KeyHighHigh       = "highHigh"
	KeyHigh           = "high"
	KeyLow            = "low"
	KeyLowLow         = "lowLow"
)

// EncodeSnapshot converts a condition snapshot to a Struct.
func EncodeSnapshot(s *alarm.Snapshot) *structpb.Struct {
	if s == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}

	fields := map[string]*structpb.Value{
		KeyName:           structpb.NewStringValue(s.Name),
		KeyTimestamp:      structpb.NewStringValue(formatTime(s.Timestamp)),
		KeyEnabled:        structpb.NewBoolValue(s.Enabled),
		KeyRetain:         structpb.NewBoolValue(s.Retain),
		KeyAcked:          structpb.NewBoolValue(s.Acked),
		KeyConfirmed:      structpb.NewBoolValue(s.Confirmed),
		KeyConfirmAllowed: structpb.NewBoolValue(s.ConfirmAllowed),
		KeyActive:         structpb.NewBoolValue(s.Active),
		KeyLimitState:     structpb.NewStringValue(s.LimitState),
		KeySeverity:       structpb.NewNumberValue(float64(s.Severity)),
		KeyComment:        structpb.NewStringValue(s.Comment),
		KeyValue:          structpb.NewNumberValue(s.Value),
	}

	if s.LastActor != nil {
		fields[KeyLastActor] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			KeyHostname: structpb.NewStringValue(s.LastActor.Hostname),
			KeyUsername: structpb.NewStringValue(s.LastActor.Username),
		}})
	}

	return &structpb.Struct{Fields: fields}
}

// DecodeSnapshot converts a Struct back to a condition snapshot.
func DecodeSnapshot(s *structpb.Struct) (*alarm.Snapshot, error) {
	if s == nil {
		return nil, ErrNilMessage
	}

	timestamp, err := parseTime(stringField(s, KeyTimestamp))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyTimestamp, err)
	}

	get := s.GetFields()

	snapshot := &alarm.Snapshot{
		Name:           stringField(s, KeyName),
		Timestamp:      timestamp,
		Enabled:        get[KeyEnabled].GetBoolValue(),
		Retain:         get[KeyRetain].GetBoolValue(),
		Acked:          get[KeyAcked].GetBoolValue(),
		Confirmed:      get[KeyConfirmed].GetBoolValue(),
		ConfirmAllowed: get[KeyConfirmAllowed].GetBoolValue(),
		Active:         get[KeyActive].GetBoolValue(),
		LimitState:     stringField(s, KeyLimitState),
		Severity:       uint16(get[KeySeverity].GetNumberValue()),
		Comment:        stringField(s, KeyComment),
		Value:          get[KeyValue].GetNumberValue(),
	}

	if actor := get[KeyLastActor].GetStructValue(); actor != nil {
		snapshot.LastActor = &alarm.Actor{
			Hostname: stringField(actor, KeyHostname),
			Username: stringField(actor, KeyUsername),
		}
	}

	return snapshot, nil
}

// EncodeStatus converts a condition status to a Struct.
func EncodeStatus(st *alarm.Status) *structpb.Struct {
	if st == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}

	result := EncodeSnapshot(&st.Snapshot)
	fields := result.GetFields()

	fields[KeyConditionID] = structpb.NewStringValue(st.ConditionID.String())
	fields[KeySourceNode] = structpb.NewStringValue(st.SourceNode.String())
	fields[KeySourceName] = structpb.NewStringValue(st.SourceName)
	fields[KeyEventID] = structpb.NewStringValue(EncodeEventID(st.EventID))
	fields[KeyMessage] = structpb.NewStringValue(st.Message)
	fields[KeyLastSeverity] = structpb.NewNumberValue(float64(st.LastSeverity))
	fields[KeyClientUserID] = structpb.NewStringValue(st.LastActor.ClientUserID())
	fields[KeyDeadband] = structpb.NewNumberValue(st.Deadband)

	limits := map[string]*structpb.Value{}
	for key, limit := range map[string]*float64{
		KeyHighHigh: st.Limits.HighHigh,
		KeyHigh:     st.Limits.High,
		KeyLow:      st.Limits.Low,
		KeyLowLow:   st.Limits.LowLow,
	} {
		if limit != nil {
			limits[key] = structpb.NewNumberValue(*limit)
		}
	}

	fields[KeyLimits] = structpb.NewStructValue(&structpb.Struct{Fields: limits})

	return result
}

// DecodeStatus converts a Struct back to a condition status.
func DecodeStatus(s *structpb.Struct) (*alarm.Status, error) {
	snapshot, err := DecodeSnapshot(s)
	if err != nil {
		return nil, err
	}

	eventID, err := DecodeEventID(stringField(s, KeyEventID))
	if err != nil {
		return nil, err
	}

	get := s.GetFields()

	st := &alarm.Status{
		Snapshot:     *snapshot,
		ConditionID:  event.NodeID(stringField(s, KeyConditionID)),
		SourceNode:   event.NodeID(stringField(s, KeySourceNode)),
		SourceName:   stringField(s, KeySourceName),
		EventID:      eventID,
		Message:      stringField(s, KeyMessage),
		LastSeverity: uint16(get[KeyLastSeverity].GetNumberValue()),
		Deadband:     get[KeyDeadband].GetNumberValue(),
	}

	if limits := get[KeyLimits].GetStructValue(); limits != nil {
		st.Limits = alarm.Limits{
			HighHigh: numberPtr(limits, KeyHighHigh),
			High:     numberPtr(limits, KeyHigh),
			Low:      numberPtr(limits, KeyLow),
			LowLow:   numberPtr(limits, KeyLowLow),
		}
	}

	return st, nil
}

func numberPtr(s *structpb.Struct, key string) *float64 {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil
	}

	n := v.GetNumberValue()

	return &n
}
