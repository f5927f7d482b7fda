// Package version reports build metadata of ua-alarm-server and ua-alarm-client.
//
// Version, Commit and BuildTime are set with -ldflags "-X"; Full falls back to the
// VCS stamp embedded by the Go toolchain when Commit and BuildTime are empty.
package version
