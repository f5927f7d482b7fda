// Package codec converts notifications and condition views to and from
// protobuf Struct messages and their protojson encoding.
//
// The same representation is used on the gRPC API, in the journal and by the
// Redis and MQTT sinks, so every consumer sees identical documents.
package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// Keys of the notification document.
const (
	KeyEventID     = "eventId"
	KeyEventType   = "eventType"
	KeyTypeName    = "typeName"
	KeySourceNode  = "sourceNode"
	KeySourceName  = "sourceName"
	KeyTime        = "time"
	KeyReceiveTime = "receiveTime"
	KeyMessage     = "message"
	KeySeverity    = "severity"
	KeyFields      = "fields"
	KeyLocale      = "locale"
	KeyText        = "text"
)

var (
	// ErrNilMessage is returned when decoding a nil message.
	ErrNilMessage = errors.New("message is nil")
	// ErrUnsupportedValue is returned for field values that have no Struct representation.
	ErrUnsupportedValue = errors.New("unsupported field value")
)

// EncodeEventID renders an event id as lowercase hex.
func EncodeEventID(id []byte) string {
	return hex.EncodeToString(id)
}

// DecodeEventID parses a hex event id.
func DecodeEventID(s string) ([]byte, error) {
	id, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode event id: %w", err)
	}

	return id, nil
}

// Encode converts a notification to a Struct.
func Encode(n *event.Notification) (*structpb.Struct, error) {
	if n == nil {
		return nil, ErrNilMessage
	}

	fields, err := encodeFields(n.Fields)
	if err != nil {
		return nil, err
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyEventID:     structpb.NewStringValue(EncodeEventID(n.EventID)),
		KeyEventType:   structpb.NewStringValue(n.EventType.String()),
		KeyTypeName:    structpb.NewStringValue(n.TypeName),
		KeySourceNode:  structpb.NewStringValue(n.SourceNode.String()),
		KeySourceName:  structpb.NewStringValue(n.SourceName),
		KeyTime:        structpb.NewStringValue(formatTime(n.Time)),
		KeyReceiveTime: structpb.NewStringValue(formatTime(n.ReceiveTime)),
		KeyMessage:     structpb.NewStructValue(encodeText(n.Message)),
		KeySeverity:    structpb.NewNumberValue(float64(n.Severity)),
		KeyFields:      structpb.NewStructValue(fields),
	}}, nil
}

// Decode converts a Struct back to a notification. Field values come back in
// their generic form: numbers as float64, localized texts as event.LocalizedText.
func Decode(s *structpb.Struct) (*event.Notification, error) {
	if s == nil {
		return nil, ErrNilMessage
	}

	eventID, err := DecodeEventID(stringField(s, KeyEventID))
	if err != nil {
		return nil, err
	}

	eventTime, err := parseTime(stringField(s, KeyTime))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyTime, err)
	}

	receiveTime, err := parseTime(stringField(s, KeyReceiveTime))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyReceiveTime, err)
	}

	n := &event.Notification{
		EventID:     eventID,
		EventType:   event.NodeID(stringField(s, KeyEventType)),
		TypeName:    stringField(s, KeyTypeName),
		SourceNode:  event.NodeID(stringField(s, KeySourceNode)),
		SourceName:  stringField(s, KeySourceName),
		Time:        eventTime,
		ReceiveTime: receiveTime,
		Message:     decodeText(s.GetFields()[KeyMessage].GetStructValue()),
		Severity:    uint16(s.GetFields()[KeySeverity].GetNumberValue()),
	}

	if fields := s.GetFields()[KeyFields].GetStructValue(); fields != nil {
		n.Fields = make(map[string]any, len(fields.GetFields()))
		for name, v := range fields.GetFields() {
			n.Fields[name] = decodeValue(v)
		}
	}

	return n, nil
}

// Marshal encodes a notification as protojson.
func Marshal(n *event.Notification) ([]byte, error) {
	s, err := Encode(n)
	if err != nil {
		return nil, err
	}

	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}

	return data, nil
}

// Unmarshal decodes a protojson notification.
func Unmarshal(data []byte) (*event.Notification, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}

	return Decode(&s)
}

// ToValue converts a notification field value to a Struct value.
func ToValue(v any) (*structpb.Value, error) {
	switch value := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case event.NodeID:
		return structpb.NewStringValue(value.String()), nil
	case event.LocalizedText:
		return structpb.NewStructValue(encodeText(value)), nil
	case uint16:
		return structpb.NewNumberValue(float64(value)), nil
	case []byte:
		return structpb.NewStringValue(EncodeEventID(value)), nil
	case time.Time:
		return structpb.NewStringValue(formatTime(value)), nil
	case fmt.Stringer:
		return structpb.NewStringValue(value.String()), nil
	}

	result, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("%w %T: %w", ErrUnsupportedValue, v, err)
	}

	return result, nil
}

func encodeFields(fields map[string]any) (*structpb.Struct, error) {
	result := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}

	for name, v := range fields {
		value, err := ToValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}

		result.Fields[name] = value
	}

	return result, nil
}

func encodeText(t event.LocalizedText) *structpb.Struct {
	fields := map[string]*structpb.Value{
		KeyText: structpb.NewStringValue(t.Text),
	}

	if t.Locale != "" {
		fields[KeyLocale] = structpb.NewStringValue(t.Locale)
	}

	return &structpb.Struct{Fields: fields}
}

func decodeText(s *structpb.Struct) event.LocalizedText {
	return event.LocalizedText{
		Locale: stringField(s, KeyLocale),
		Text:   stringField(s, KeyText),
	}
}

// decodeValue maps a Struct value to Go, recognizing localized texts.
func decodeValue(v *structpb.Value) any {
	if s := v.GetStructValue(); s != nil {
		if _, ok := s.GetFields()[KeyText]; ok && len(s.GetFields()) <= 2 {
			return decodeText(s)
		}
	}

	return v.AsInterface()
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, s)
}
