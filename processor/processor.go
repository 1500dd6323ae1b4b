// Package processor parses and formats shell scripts by calling a
// sandboxed engine module.
//
// A Processor loads the engine lazily on first use and keeps a single
// instance for its lifetime. Calls may be made from any goroutine; they are
// serialized on the instance.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/un-ts/sh-syntax/ast"
	"github.com/un-ts/sh-syntax/runtime"
)

// Processor is a handle to one engine instance.
type Processor struct {
	logger  *zap.Logger
	loader  *loader
	pending *correlation
	stats   counters

	// mu serializes calls into the instance.
	mu     sync.Mutex
	closed atomic.Bool
}

// Option configures a Processor.
type Option func(*settings)

type settings struct {
	logger   *zap.Logger
	provider Provider
}

// WithLogger sets the logger for processor and guest diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithProvider overrides Config.Path as the source of the engine module.
func WithProvider(p Provider) Option {
	return func(s *settings) {
		s.provider = p
	}
}

// New creates a processor. The engine is not loaded until the first call.
func New(cfg Config, opts ...Option) (*Processor, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Default()
	if cfg.Runtime.Logger == nil {
		cfg.Runtime.Logger = s.logger
	}

	provider := s.provider
	switch {
	case provider != nil:
	case cfg.Path != "":
		provider = FileProvider(cfg.Path)
	case cfg.Runtime.Type == runtime.TypeNative:
		provider = BytesProvider(nil)
	default:
		return nil, fmt.Errorf("path is required: %w", runtime.ErrInvalidConfiguration)
	}

	return &Processor{
		logger: s.logger,
		loader: &loader{
			provider: provider,
			config:   cfg.Runtime,
			host:     newHostModule(s.logger.Named("guest")),
			logger:   s.logger,
		},
		pending: newCorrelation(s.logger),
	}, nil
}

// Parse parses text into a syntax tree.
func (p *Processor) Parse(ctx context.Context, text string, opts *Options) (*ast.File, error) {
	env, err := p.call(ctx, textInput(text), false, opts)
	if err != nil {
		return nil, err
	}
	if env.File == nil {
		return nil, p.fail(newTransportError("expected a syntax tree", nil))
	}
	return env.File, nil
}

// Print formats text.
func (p *Processor) Print(ctx context.Context, text string, opts *Options) (string, error) {
	return p.print(ctx, textInput(text), opts)
}

// PrintFile formats a syntax tree returned by Parse. The engine reprints
// from opts.OriginalText, which must hold the source the tree came from.
func (p *Processor) PrintFile(ctx context.Context, file *ast.File, opts *Options) (string, error) {
	if file == nil {
		return "", &UsageError{Option: "file", Reason: "nil syntax tree"}
	}
	return p.print(ctx, fileInput(file), opts)
}

func (p *Processor) print(ctx context.Context, in input, opts *Options) (string, error) {
	env, err := p.call(ctx, in, true, opts)
	if err != nil {
		return "", err
	}
	if env.Text == nil {
		return "", p.fail(newTransportError("expected printed text", nil))
	}
	return *env.Text, nil
}

// Stats returns a snapshot of the processor's counters.
func (p *Processor) Stats() Stats {
	return p.stats.snapshot()
}

// Close releases the engine instance. Calls made afterwards fail with
// ErrClosed. Close waits for an in-flight call to finish.
func (p *Processor) Close(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mod := p.loader.seal()
	if mod == nil {
		return nil
	}
	return mod.close(ctx)
}

func (p *Processor) call(ctx context.Context, in input, print bool, opts *Options) (*ast.Envelope, error) {
	enc, err := encode(in, print, opts)
	if err != nil {
		return nil, p.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, p.fail(err)
	}
	if p.closed.Load() {
		return nil, p.fail(ErrClosed)
	}

	mod, err := p.loader.get(ctx)
	if err != nil {
		return nil, p.fail(err)
	}

	id := p.pending.register()
	p.invoke(ctx, mod, id, enc)

	out, ok := p.pending.take(id)
	if !ok {
		return nil, p.fail(newTransportError("no result delivered", nil))
	}
	if out.err != nil {
		return nil, p.fail(out.err)
	}
	return out.env, nil
}

// invoke runs one call under the instance lock and delivers its outcome.
func (p *Processor) invoke(ctx context.Context, mod *module, id uint64, enc *encoded) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var o outcome
	switch {
	case p.closed.Load():
		o.err = ErrClosed
	case ctx.Err() != nil:
		o.err = ctx.Err()
	default:
		o.env, o.err = p.exec(ctx, mod, enc)
	}
	p.pending.deliver(id, o)
}

func (p *Processor) exec(ctx context.Context, mod *module, enc *encoded) (env *ast.Envelope, err error) {
	ctx = mod.rctx.WithRuntimeContext(ctx)
	p.stats.calls.Add(1)

	a := newArena(ctx, mod, &p.stats)
	defer func() {
		if rerr := a.release(); rerr != nil {
			env = nil
			err = multierr.Append(err, fmt.Errorf("%w: releasing arguments: %w", ErrAllocation, rerr))
		}
	}()

	regions, err := a.put(enc.filepath, enc.text, enc.stopAt)
	if err != nil {
		return nil, err
	}

	args := enc.args
	args.FilepathPtr, args.FilepathLen, args.FilepathCap = regions[0].ptr, regions[0].size, regions[0].size
	args.TextPtr, args.TextLen, args.TextCap = regions[1].ptr, regions[1].size, regions[1].size
	args.StopAtPtr, args.StopAtLen, args.StopAtCap = regions[2].ptr, regions[2].size, regions[2].size

	p.logger.Debug("invoking engine",
		zap.String("filepath", enc.filepath),
		zap.Bool("print", args.Print),
		zap.Int("bytes", len(enc.text)),
	)

	res, err := mod.process.Call(ctx, args.Params()...)
	if err != nil {
		return nil, newTransportError("engine call failed", err)
	}
	if len(res) == 0 {
		return nil, newTransportError("engine returned no result", nil)
	}

	env, err = decode(mod.memory, uint32(res[0]))
	if err != nil {
		return nil, err
	}
	if err := translate(env); err != nil {
		return nil, err
	}
	return env, nil
}

func (p *Processor) fail(err error) error {
	p.stats.failures.Add(1)
	var usage *UsageError
	if !errors.As(err, &usage) {
		p.logger.Debug("call failed", zap.Error(err))
	}
	return err
}
