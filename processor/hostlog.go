package processor

import (
	"context"
	"log/slog"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/un-ts/sh-syntax/internal/guest/logging"
	"github.com/un-ts/sh-syntax/runtime"
)

const (
	// hostModuleName is the import module the engine links against
	hostModuleName = "sh-syntax"
	// logFunction receives JSON log records from the engine
	logFunction = "log"
)

func newHostModule(logger *zap.Logger) runtime.HostModule {
	i32 := runtime.ValueTypeI32
	return runtime.NewHostModule(hostModuleName).
		AddFunction(logFunction, []runtime.ValueType{i32, i32}, nil, logMessageFn(logger))
}

// logMessageFn forwards a guest record at (ptr, len) to logger.
func logMessageFn(logger *zap.Logger) runtime.HostFunc {
	return func(_ context.Context, mod runtime.ModuleInstance, stack []uint64) {
		ptr, size := uint32(stack[0]), uint32(stack[1])

		b, ok := mod.Memory().Read(ptr, size)
		if !ok {
			logger.Error("log message from guest is out of range",
				zap.Uint32("ptr", ptr), zap.Uint32("len", size))
			return
		}

		var msg logging.LogMessage
		if err := json.Unmarshal(b, &msg); err != nil {
			logger.Error("failed to unmarshal log message from guest", zap.Error(err))
			return
		}

		ce := logger.Check(zapLevelFromSlogLevel(slog.Level(msg.Level)), msg.Message)
		if ce == nil {
			return
		}

		keys := make([]string, 0, len(msg.Fields))
		for k := range msg.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fields := make([]zap.Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, zap.String(k, msg.Fields[k]))
		}
		ce.Write(fields...)
	}
}

// zapLevelFromSlogLevel maps slog levels onto zap. Anything above error
// is logged as error: a guest must never panic or exit the host.
func zapLevelFromSlogLevel(level slog.Level) zapcore.Level {
	switch {
	case level < slog.LevelInfo:
		return zapcore.DebugLevel
	case level < slog.LevelWarn:
		return zapcore.InfoLevel
	case level < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
