package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl sends entries at or above its own level to a fixed set of outputs. Subloggers share the
// outputs but get a level of their own.
type impl struct {
	name    string
	level   AtomicLevel
	outputs []zapcore.Core
	sugar   *zap.SugaredLogger
}

func newImpl(name string, level Level, outputs ...zapcore.Core) *impl {
	lvl := NewAtomicLevelAt(level)
	base := zap.New(leveledCore{Core: zapcore.NewTee(outputs...), level: lvl},
		zap.AddCaller(), zap.AddCallerSkip(1))
	return &impl{
		name:    name,
		level:   lvl,
		outputs: outputs,
		sugar:   base.Named(name).Sugar(),
	}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return newImpl(name, imp.level.Get(), imp.outputs...)
}

func (imp *impl) Debug(args ...interface{}) {
	imp.sugar.Debug(args...)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Debugw(msg, keysAndValues...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.sugar.Infow(msg, keysAndValues...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Warnw(msg, keysAndValues...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.sugar.Errorw(msg, keysAndValues...)
}

// leveledCore drops entries below a level that can change after the core is built.
type leveledCore struct {
	zapcore.Core
	level AtomicLevel
}

func (c leveledCore) Enabled(l zapcore.Level) bool {
	return l >= c.level.Get().AsZap() && c.Core.Enabled(l)
}

func (c leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return leveledCore{Core: c.Core.With(fields), level: c.level}
}

func (c leveledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}
