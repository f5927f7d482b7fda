package v1

// Request keys understood by the condition service.
const (
	KeyName          = "name"
	KeyEventID       = "eventId"
	KeyComment       = "comment"
	KeyLocale        = "locale"
	KeyActor         = "actor"
	KeyActorHostname = "hostname"
	KeyActorUsername = "username"
	KeyValue         = "value"
	KeySourceName    = "sourceName"
	KeyLimit         = "limit"
	KeySince         = "since"
)

// Response keys.
const (
	KeyConditions = "conditions"
	KeyEvents     = "events"
	KeyCondition  = "condition"
	KeyTriggered  = "triggered"
)
