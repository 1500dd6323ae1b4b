package logging

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap.Logger whose entries are sent to the host.
// Level filtering is left to the host logger.
func NewLogger() *zap.Logger {
	return zap.New(&hostCore{})
}

type hostCore struct {
	fields []zapcore.Field
}

func (c *hostCore) Enabled(zapcore.Level) bool { return true }

func (c *hostCore) With(fields []zapcore.Field) zapcore.Core {
	return &hostCore{fields: append(c.fields[:len(c.fields):len(c.fields)], fields...)}
}

func (c *hostCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(entry, c)
}

func (c *hostCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	m := make(map[string]string, len(enc.Fields)+1)
	for k, v := range enc.Fields {
		m[k] = fmt.Sprint(v)
	}
	if entry.LoggerName != "" {
		m["logger"] = entry.LoggerName
	}

	sendLogMessage(slogLevel(entry.Level), entry.Message, m)
	return nil
}

func (c *hostCore) Sync() error { return nil }

// slogLevel maps zap levels onto slog numbering. Levels above error are
// sent as error.
func slogLevel(l zapcore.Level) slog.Level {
	switch {
	case l <= zapcore.DebugLevel:
		return slog.LevelDebug
	case l == zapcore.InfoLevel:
		return slog.LevelInfo
	case l == zapcore.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
