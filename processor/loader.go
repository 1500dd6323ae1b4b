package processor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/un-ts/sh-syntax/internal/abi"
	"github.com/un-ts/sh-syntax/runtime"
	_ "github.com/un-ts/sh-syntax/runtime/native" // Register native runtime
	_ "github.com/un-ts/sh-syntax/runtime/wazero" // Register Wazero runtime
)

// Provider supplies the engine module binary. It is called at most once
// per processor.
type Provider interface {
	Binary(ctx context.Context) ([]byte, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) ([]byte, error)

// Binary calls f.
func (f ProviderFunc) Binary(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// FileProvider reads the module from path.
func FileProvider(path string) Provider {
	return ProviderFunc(func(context.Context) ([]byte, error) {
		return os.ReadFile(path)
	})
}

// BytesProvider serves an in-memory module, for example one embedded with
// go:embed.
func BytesProvider(b []byte) Provider {
	return ProviderFunc(func(context.Context) ([]byte, error) {
		return b, nil
	})
}

// module is a loaded engine instance and its exports.
type module struct {
	rt       runtime.Runtime
	compiled runtime.CompiledModule
	instance runtime.ModuleInstance
	rctx     runtime.Context

	alloc   runtime.FunctionInstance
	free    runtime.FunctionInstance
	process runtime.FunctionInstance
	memory  runtime.Memory
}

func (m *module) close(ctx context.Context) error {
	var err error
	if m.rctx != nil {
		err = multierr.Append(err, m.rctx.Close(ctx))
	}
	if m.instance != nil {
		err = multierr.Append(err, m.instance.Close(ctx))
	}
	if m.compiled != nil {
		err = multierr.Append(err, m.compiled.Close(ctx))
	}
	if m.rt != nil {
		err = multierr.Append(err, m.rt.Close(ctx))
	}
	return err
}

// loader instantiates the engine once and caches the outcome, including
// a failure, for the lifetime of the processor.
type loader struct {
	provider Provider
	config   runtime.Config
	host     runtime.HostModule
	logger   *zap.Logger

	once sync.Once
	mod  *module
	err  error
}

// get returns the cached module, loading it on first use. Concurrent
// first calls share one load.
func (l *loader) get(ctx context.Context) (*module, error) {
	l.once.Do(func() {
		// The load outlives the caller that happened to trigger it.
		l.mod, l.err = l.load(context.WithoutCancel(ctx))
		if l.err != nil {
			l.logger.Error("failed to load engine module", zap.Error(l.err))
		}
	})
	return l.mod, l.err
}

// seal prevents any later load and returns the module, if one was loaded.
func (l *loader) seal() *module {
	l.once.Do(func() {
		l.err = ErrClosed
	})
	return l.mod
}

func (l *loader) load(ctx context.Context) (_ *module, err error) {
	binary, err := l.provider.Binary(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading module: %w", ErrLoad, err)
	}

	m := &module{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, m.close(ctx))
		}
	}()

	m.rt, err = runtime.NewRuntime(l.config)
	if err != nil {
		return nil, fmt.Errorf("%w: creating runtime: %w", ErrLoad, err)
	}

	m.compiled, err = m.rt.Compile(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("%w: compiling module: %w", ErrLoad, err)
	}

	m.instance, m.rctx, err = m.rt.InstantiateWithHost(ctx, m.compiled, l.host)
	if err != nil {
		return nil, fmt.Errorf("%w: instantiating module: %w", ErrLoad, err)
	}

	exports := map[string]*runtime.FunctionInstance{
		abi.ExportAlloc:   &m.alloc,
		abi.ExportFree:    &m.free,
		abi.ExportProcess: &m.process,
	}
	for _, name := range []string{abi.ExportAlloc, abi.ExportFree, abi.ExportProcess} {
		fn := m.instance.Function(name)
		if fn == nil {
			return nil, fmt.Errorf("%w: wasm: %s is not exported: %w", ErrLoad, name, runtime.ErrFunctionNotExported)
		}
		*exports[name] = fn
	}

	m.memory = m.instance.Memory()
	if m.memory == nil {
		return nil, fmt.Errorf("%w: wasm: %s is not exported: %w", ErrLoad, abi.ExportMemory, runtime.ErrMemoryExportNotFound)
	}

	l.logger.Debug("engine module loaded",
		zap.String("runtime", l.config.Type),
		zap.Int("size", len(binary)),
	)
	return m, nil
}
