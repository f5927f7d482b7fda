// Package condition implements the gRPC transport for the condition service.
//
// It adapts domain statuses and notifications to Struct documents and exposes
// a server that calls into a provided business-service interface.
package condition
