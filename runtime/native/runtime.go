package native

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.uber.org/zap"

	"github.com/un-ts/sh-syntax/internal/abi"
	"github.com/un-ts/sh-syntax/internal/engine"
	"github.com/un-ts/sh-syntax/internal/guest/logging"
	"github.com/un-ts/sh-syntax/runtime"
)

type nativeRuntime struct {
	config runtime.Config
}

type compiledModule struct{}

type moduleInstance struct {
	mem    *linearMemory
	host   runtime.HostModule
	logger *zap.Logger
	output uint32
	closed bool
}

type function struct {
	inst  *moduleInstance
	arity int
	call  func(ctx context.Context, params []uint64) []uint64
}

type nativeContext struct{}

func newNativeRuntime(config runtime.Config) (runtime.Runtime, error) {
	config.Default()
	if config.MemoryLimitPages == 0 {
		config.MemoryLimitPages = runtime.MaxPages
	}
	return &nativeRuntime{config: config}, nil
}

// Compile accepts any binary; the engine is already linked in.
func (r *nativeRuntime) Compile(context.Context, []byte) (runtime.CompiledModule, error) {
	return compiledModule{}, nil
}

func (r *nativeRuntime) InstantiateWithHost(_ context.Context, module runtime.CompiledModule, hostModule runtime.HostModule) (runtime.ModuleInstance, runtime.Context, error) {
	if _, ok := module.(compiledModule); !ok {
		return nil, nil, fmt.Errorf("invalid module type for native runtime: %w", runtime.ErrInvalidConfiguration)
	}
	return &moduleInstance{
		mem:    newLinearMemory(r.config.MemoryLimitPages),
		host:   hostModule,
		logger: r.config.Logger,
	}, nativeContext{}, nil
}

func (r *nativeRuntime) Close(context.Context) error {
	return nil
}

func (compiledModule) Close(context.Context) error {
	return nil
}

func (m *moduleInstance) Function(name string) runtime.FunctionInstance {
	switch name {
	case abi.ExportAlloc:
		return &function{inst: m, arity: 1, call: m.wasmAlloc}
	case abi.ExportFree:
		return &function{inst: m, arity: 1, call: m.wasmFree}
	case abi.ExportProcess:
		return &function{inst: m, arity: abi.ProcessParams, call: m.process}
	default:
		return nil
	}
}

func (m *moduleInstance) Memory() runtime.Memory {
	return m.mem
}

func (m *moduleInstance) Close(context.Context) error {
	m.closed = true
	return nil
}

// LiveRegions reports the number of allocated regions, including the
// retained output of the last call.
func (m *moduleInstance) LiveRegions() int {
	return len(m.mem.live)
}

func (m *moduleInstance) wasmAlloc(_ context.Context, params []uint64) []uint64 {
	return []uint64{uint64(m.mem.alloc(uint32(params[0])))}
}

func (m *moduleInstance) wasmFree(_ context.Context, params []uint64) []uint64 {
	m.mem.free(uint32(params[0]))
	return nil
}

func (m *moduleInstance) process(ctx context.Context, params []uint64) []uint64 {
	args, _ := abi.ArgsFromParams(params)

	// The previous result is released on the next call.
	m.mem.free(m.output)
	m.output = 0

	out := engine.ProcessArgs(&args, m.readString)

	ptr := m.mem.alloc(uint32(len(out)) + 1)
	if ptr == 0 {
		panic(trap("out of memory"))
	}
	m.mem.Write(ptr, append(out, 0))
	m.output = ptr

	m.log(ctx, slog.LevelDebug, "processed", map[string]string{
		"print": strconv.FormatBool(args.Print),
		"bytes": strconv.Itoa(len(out)),
	})
	return []uint64{uint64(ptr)}
}

func (m *moduleInstance) readString(ptr, size uint32) string {
	if size == 0 {
		return ""
	}
	b, ok := m.mem.Read(ptr, size)
	if !ok {
		panic(trap("out of bounds memory access"))
	}
	return string(b)
}

// log sends a record through the host "log" import, the way the wasm
// guest does. Records are dropped when memory is exhausted.
func (m *moduleInstance) log(ctx context.Context, level slog.Level, msg string, fields map[string]string) {
	if m.host == nil {
		return
	}
	b, err := logging.Encode(level, msg, fields)
	if err != nil {
		return
	}
	ptr := m.mem.alloc(uint32(len(b)))
	if ptr == 0 {
		return
	}
	defer m.mem.free(ptr)

	m.mem.Write(ptr, b)
	if err := runtime.CallHost(ctx, m.host, m, "log", []uint64{uint64(ptr), uint64(len(b))}); err != nil {
		m.logger.Debug("host log function unavailable", zap.Error(err))
	}
}

// Call runs the export. Panics inside the export surface as errors, like
// a trap in a wasm guest.
func (f *function) Call(ctx context.Context, params ...uint64) (results []uint64, err error) {
	if f.inst.closed {
		return nil, errModuleClosed
	}
	if len(params) != f.arity {
		return nil, fmt.Errorf("expected %d params, but passed %d", f.arity, len(params))
	}

	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("wasm error: %v", r)
		}
	}()
	return f.call(ctx, params), nil
}

func (nativeContext) WithRuntimeContext(ctx context.Context) context.Context {
	return ctx
}

func (nativeContext) Close(context.Context) error {
	return nil
}

var errModuleClosed = errors.New("module closed")

type trap string

func (t trap) Error() string {
	return string(t)
}
