package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelCore overrides the level of a wrapped core so a single executor can log
// more or less verbosely than the rest of the process.
type levelCore struct {
	zapcore.Core

	// level is the minimum level this core accepts.
	level zapcore.Level
}

// Enabled reports whether l passes the overridden level.
func (c *levelCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check adds the core to the checked entry when the entry level is enabled.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With keeps the level override on derived cores.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{
		Core:  c.Core.With(fields),
		level: c.level,
	}
}

// WithLevel returns an option that pins the logger to lvl regardless of the parent level.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &levelCore{Core: core, level: lvl}
	})
}
