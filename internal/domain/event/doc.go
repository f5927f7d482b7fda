// Package event implements the base event type of the OPC UA event model.
//
// A Record carries the mandatory BaseEventType properties and the trigger
// algorithm that stamps identity and timestamps before handing a snapshot
// Notification to the runtime it is attached to. Records are re-triggered in
// place: every Trigger mutates the derived fields and emits a fresh snapshot.
package event
