package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextLogger verifies that loggers stored in the context are returned and the global one is the fallback.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	require.Same(t, Logger(), FromContext(ctx))

	core, logs := observer.New(zapcore.DebugLevel)
	ctx = ToContext(ctx, zap.New(core).Sugar())
	ctx = WithName(ctx, "dispatch")
	ctx = WithKV(ctx, "sink", "journal")
	ctx = WithFields(ctx, zap.Int("queue", 3))

	InfoKV(ctx, "delivered", "event_id", "0a0b")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "dispatch", entries[0].LoggerName)
	require.Equal(t, "delivered", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "journal", fields["sink"])
	require.Equal(t, int64(3), fields["queue"])
	require.Equal(t, "0a0b", fields["event_id"])
}

// TestNewWithFile writes JSON lines to the rotated file, honoring the file level override.
func TestNewWithFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "server.log")

	l, closeFn := NewWithFile(zapcore.InfoLevel, FormatConsole, FileOptions{Path: path, Level: zapcore.DebugLevel})
	l.Infow("condition acknowledged", "condition", "LevelAlarm")
	l.Debugw("limit state evaluated", "value", 95)
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"condition acknowledged"`)
	require.Contains(t, string(data), `"condition":"LevelAlarm"`)
	require.Contains(t, string(data), `"msg":"limit state evaluated"`)

	quiet := filepath.Join(t.TempDir(), "quiet.log")

	l, closeFn = NewWithFile(zapcore.WarnLevel, FormatJSON, FileOptions{Path: quiet})
	l.Infow("hidden")
	l.Warnw("deadband too wide")
	require.NoError(t, closeFn())

	data, err = os.ReadFile(quiet)
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), "deadband too wide")

	_, noop := NewWithFile(nil, FormatJSON, FileOptions{})
	require.NoError(t, noop())
}

// TestParseFormat accepts console and json and defaults to console.
func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, ok := ParseFormat("")
	require.True(t, ok)
	require.Equal(t, FormatConsole, f)

	f, ok = ParseFormat(" JSON ")
	require.True(t, ok)
	require.Equal(t, FormatJSON, f)

	f, ok = ParseFormat("xml")
	require.False(t, ok)
	require.Equal(t, FormatConsole, f)
}
