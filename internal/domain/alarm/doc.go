// Package alarm contains the condition and alarm types of the OPC UA
// Alarms & Conditions model.
//
// Condition composes an event.Record and adds retained state.
// AcknowledgeableCondition adds the Acknowledge/Confirm workflow, and
// ExclusiveLimitAlarm drives an exclusive limit state machine from monitored
// values. Actor and Snapshot describe who acted on a condition and the state
// that is persisted across restarts.
package alarm
