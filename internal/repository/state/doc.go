// Package state implements persistence for condition snapshots.
//
// The FileRepository stores and loads the snapshots as JSON on disk and exposes a
// Repository interface that the server service depends on.
package state
