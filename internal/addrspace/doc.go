// Package addrspace provides the minimal server address space the event core
// consumes: objects organized by browse name, the event type registry, a monotonic
// UTC clock, event id generation and the hand-off to notification dispatch.
//
// Events and conditions are created through the Server so that they are attached
// to it and detached again when their node is removed.
package addrspace
