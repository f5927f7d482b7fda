// Package client implements the ua-alarm-client subcommands.
//
// Each command connects to the condition server, runs one operation and
// prints the resulting condition status or notifications.
package client
