package logger

import (
	"go.uber.org/zap/zapcore"
)

// leveledCore gates a core with its own level, independent of the level it was built with.
type leveledCore struct {
	zapcore.Core

	level zapcore.LevelEnabler
}

// withLevel returns core gated by level, or core itself when level is nil.
//
//nolint:ireturn // zapcore.Core is the zap extension point.
func withLevel(core zapcore.Core, level zapcore.LevelEnabler) zapcore.Core {
	if level == nil {
		return core
	}

	return &leveledCore{Core: core, level: level}
}

// Enabled reports whether l passes the override level.
func (c *leveledCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check adds the core to ce when the entry passes the override level.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *leveledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return ce.AddCore(ent, c)
}

// With keeps the override level on the derived core.
//
//nolint:ireturn // zapcore.Core is the zap extension point.
func (c *leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return &leveledCore{Core: c.Core.With(fields), level: c.level}
}
