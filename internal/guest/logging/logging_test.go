//go:build !wasm

package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEncode(t *testing.T) {
	b, err := Encode(slog.LevelWarn, "slow parse", map[string]string{"bytes": "10"})
	require.NoError(t, err)

	var msg LogMessage
	require.NoError(t, json.Unmarshal(b, &msg))
	assert.Equal(t, int32(slog.LevelWarn), msg.Level)
	assert.Equal(t, "slow parse", msg.Message)
	assert.Equal(t, "10", msg.Fields["bytes"])
}

func decodeCaptured(t *testing.T) []LogMessage {
	t.Helper()

	msgs := make([]LogMessage, len(captured))
	for i, raw := range captured {
		require.NoError(t, json.Unmarshal(raw, &msgs[i]))
	}
	return msgs
}

func TestLoggerLevels(t *testing.T) {
	captured = nil
	logger := NewLogger()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.DPanic("dpanic message")

	msgs := decodeCaptured(t)
	require.Len(t, msgs, 5)

	want := []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError, slog.LevelError}
	for i, msg := range msgs {
		assert.Equal(t, int32(want[i]), msg.Level, msg.Message)
	}
}

func TestLoggerFields(t *testing.T) {
	captured = nil
	logger := NewLogger().Named("engine").With(zap.Bool("print", true))

	logger.Info("processed", zap.Int("bytes", 42), zap.String("file", "a.sh"))
	logger.Info("second")

	msgs := decodeCaptured(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]string{
		"print":  "true",
		"bytes":  "42",
		"file":   "a.sh",
		"logger": "engine",
	}, msgs[0].Fields)
	assert.Equal(t, map[string]string{"print": "true", "logger": "engine"}, msgs[1].Fields)
}
