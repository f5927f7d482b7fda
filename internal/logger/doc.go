// Package logger wraps zap for the alarm binaries.
//
// A global sugared logger writes to stdout in console or JSON form and may be
// teed into a rotated JSON file with its own level. Request handlers, the
// dispatcher and the sinks carry scoped loggers in their context
// (ToContext, FromContext, WithName, WithKV, WithFields) and log through the
// package helpers such as InfoKV and ErrorKV.
package logger
