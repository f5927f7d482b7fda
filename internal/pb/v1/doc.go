// Package v1 holds the gRPC contract of the condition service.
//
// Requests and responses are google.protobuf.Struct documents, so the
// service needs no generated message types. Keys are listed in keys.go.
package v1
