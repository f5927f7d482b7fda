// Package config defines the settings used by the alarm binaries and provides
// helpers to load, validate and save them in YAML format.
//
// Besides the server address it carries the optional sinks (journal, Redis, MQTT),
// log output and the limit alarms the server hosts.
package config
