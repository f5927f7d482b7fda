package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for file output.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// FileOptions describes a rotated JSON log file written next to the console output.
type FileOptions struct {
	// Path is the log file; empty disables file output.
	Path string
	// Level gates the file separately from the console; nil follows the console level.
	Level      zapcore.LevelEnabler
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewWithFile creates a logger writing to stdout in format and, when opts.Path is set,
// to a rotated JSON file. The returned closer flushes and closes the file.
func NewWithFile(
	level zapcore.LevelEnabler,
	format Format,
	opts FileOptions,
	options ...zap.Option,
) (*zap.SugaredLogger, func() error) {
	if opts.Path == "" {
		return NewWithFormat(level, format, options...), func() error { return nil }
	}

	if level == nil {
		level = defaultLevel
	}

	file := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    valueOr(opts.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valueOr(opts.MaxBackups, DefaultMaxBackups),
		MaxAge:     valueOr(opts.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   opts.Compress,
	}

	fileCore := withLevel(zapcore.NewCore(newEncoder(FormatJSON), zapcore.AddSync(file), level), opts.Level)
	core := zapcore.NewTee(NewWithFormat(level, format).Desugar().Core(), fileCore)

	l := zap.New(core, options...).Sugar()

	return l, func() error {
		_ = l.Sync() //nolint:errcheck // Sync fails on some terminals.

		return file.Close()
	}
}

func valueOr(v, def int) int {
	if v <= 0 {
		return def
	}

	return v
}
