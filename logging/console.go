package logging

import (
	"io"
	"time"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the format console output uses for log timestamps.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// newConsoleCore writes tab separated lines: time, level, logger name, caller, message and the
// fields as a JSON object. It accepts every level; the logger in front of it does the filtering.
func newConsoleCore(w io.Writer, inUTC bool) zapcore.Core {
	encodeTime := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		if inUTC {
			t = t.UTC()
		}
		enc.AppendString(t.Format(DefaultTimeFormatStr))
	}
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		FunctionKey:      zapcore.OmitKey,
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       encodeTime,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: "\t",
	})
	return zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), zapcore.DebugLevel)
}
