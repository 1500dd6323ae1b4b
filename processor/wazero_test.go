package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/un-ts/sh-syntax/internal/abi"
	"github.com/un-ts/sh-syntax/runtime"
)

func newWazeroProcessor(t *testing.T, m engineModule) *Processor {
	t.Helper()

	p, err := New(Config{
		Path:    writeTempModule(t, m.build()),
		Runtime: runtime.Config{Type: runtime.TypeWazero, Mode: runtime.ModeInterpreter},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, p.Close(context.Background()))
	})
	return p
}

// guestCounter reads one of the test module's allocs/frees counters.
func guestCounter(t *testing.T, p *Processor, name string) uint32 {
	t.Helper()

	mod := p.loader.mod
	require.NotNil(t, mod, "engine not loaded")
	fn := mod.instance.Function(name)
	require.NotNil(t, fn)
	res, err := fn.Call(mod.rctx.WithRuntimeContext(context.Background()))
	require.NoError(t, err)
	return uint32(res[0])
}

func TestWazeroParse(t *testing.T) {
	p := newWazeroProcessor(t, engineModule{
		payload: `{"file":{"Name":"w.sh","Stmt":[{"Pos":{"Offset":0,"Line":1,"Col":1},"End":{"Offset":4,"Line":1,"Col":5}}],"Pos":{"Offset":0,"Line":1,"Col":1},"End":{"Offset":4,"Line":1,"Col":5}}}`,
	})

	f, err := p.Parse(context.Background(), "echo", withOptions(func(o *Options) { o.Filepath = "w.sh" }))
	require.NoError(t, err)
	assert.Equal(t, "w.sh", f.Name)
	require.Len(t, f.Stmts, 1)
	assert.Equal(t, uint(4), f.Stmts[0].End.Offset)

	assert.Equal(t, uint32(2), guestCounter(t, p, "allocs"))
	assert.Equal(t, uint32(2), guestCounter(t, p, "frees"))

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Allocations)
	assert.Equal(t, uint64(2), stats.Frees)
}

func TestWazeroPrint(t *testing.T) {
	p := newWazeroProcessor(t, engineModule{payload: `{"text":"echo hi\n"}`})

	got, err := p.Print(context.Background(), "echo   hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "echo hi\n", got)

	// Payload kind must match the operation.
	_, err = p.Parse(context.Background(), "echo   hi", nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Incomplete)
}

func TestWazeroEngineErrors(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		p := newWazeroProcessor(t, engineModule{payload: `{"message":"stop word too long"}`})

		_, err := p.Parse(context.Background(), "echo", nil)
		var se *SyntaxError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "stop word too long", se.Message)
	})

	t.Run("structured parse error", func(t *testing.T) {
		p := newWazeroProcessor(t, engineModule{
			payload: `{"parseError":{"Filename":"a.sh","Incomplete":true,"Text":"reached EOF","Pos":{"Offset":5,"Line":1,"Col":6}},"message":"a.sh:1:6: reached EOF"}`,
		})

		_, err := p.Parse(context.Background(), "echo (", nil)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "a.sh", pe.Filename)
		assert.True(t, pe.Incomplete)
		assert.Equal(t, "reached EOF", pe.Text)
		assert.Equal(t, uint(6), pe.Pos.Col)
		assert.Equal(t, "a.sh:1:6: reached EOF", pe.Error())
	})
}

func TestWazeroMalformedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{name: "empty", payload: "", reason: "not a JSON object"},
		{name: "array", payload: `[1,2]`, reason: "not a JSON object"},
		{name: "truncated", payload: `{"file":`, reason: "not a JSON object"},
		{name: "invalid json", payload: `{"file":}`, reason: "decoding envelope"},
		{name: "invalid utf-8", payload: "{\"text\":\"\xff\"}", reason: "UTF-8"},
		{name: "no result", payload: `{"other":1}`, reason: "neither a result nor an error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newWazeroProcessor(t, engineModule{payload: tt.payload})

			_, err := p.Parse(context.Background(), "echo", nil)
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.True(t, te.Incomplete)
			assert.Contains(t, err.Error(), tt.reason)

			assert.Equal(t, guestCounter(t, p, "allocs"), guestCounter(t, p, "frees"))
		})
	}
}

func TestWazeroInvocationFailures(t *testing.T) {
	t.Run("process traps", func(t *testing.T) {
		p := newWazeroProcessor(t, engineModule{process: bodyTrap})

		_, err := p.Parse(context.Background(), "echo", withOptions(func(o *Options) { o.Filepath = "t.sh" }))
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Contains(t, err.Error(), "engine call failed")

		assert.Equal(t, uint32(2), guestCounter(t, p, "allocs"))
		assert.Equal(t, uint32(2), guestCounter(t, p, "frees"))
	})

	t.Run("alloc returns null", func(t *testing.T) {
		p := newWazeroProcessor(t, engineModule{alloc: bodyAllocNull, payload: `{"text":""}`})

		_, err := p.Print(context.Background(), "echo", nil)
		require.ErrorIs(t, err, ErrAllocation)
		assert.Contains(t, err.Error(), "null pointer")
		assert.Zero(t, guestCounter(t, p, "frees"))
		assert.Zero(t, p.Stats().Allocations)
	})

	t.Run("alloc traps", func(t *testing.T) {
		p := newWazeroProcessor(t, engineModule{alloc: bodyTrap})

		_, err := p.Print(context.Background(), "echo", nil)
		require.ErrorIs(t, err, ErrAllocation)
		assert.Contains(t, err.Error(), abi.ExportAlloc)
	})

	t.Run("free traps", func(t *testing.T) {
		p := newWazeroProcessor(t, engineModule{free: bodyTrap, payload: `{"text":"echo\n"}`})

		_, err := p.Print(context.Background(), "echo", nil)
		require.ErrorIs(t, err, ErrAllocation)
		assert.Contains(t, err.Error(), "releasing arguments")
	})
}

func TestWazeroLoadFailures(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{abi.ExportAlloc, abi.ExportFree, abi.ExportProcess} {
		t.Run("missing "+name, func(t *testing.T) {
			p := newWazeroProcessor(t, engineModule{omit: name})

			_, err := p.Parse(ctx, "echo", nil)
			require.ErrorIs(t, err, ErrLoad)
			require.ErrorIs(t, err, runtime.ErrFunctionNotExported)
			assert.True(t, strings.Contains(err.Error(), name), "error should name %s: %v", name, err)
		})
	}

	t.Run("missing memory", func(t *testing.T) {
		p := newWazeroProcessor(t, engineModule{noMemory: true})

		_, err := p.Parse(ctx, "echo", nil)
		require.ErrorIs(t, err, ErrLoad)
		require.ErrorIs(t, err, runtime.ErrMemoryExportNotFound)
	})

	t.Run("invalid binary", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.wasm")
		require.NoError(t, os.WriteFile(path, []byte("not wasm"), 0o600))

		p, err := New(Config{Path: path})
		require.NoError(t, err)
		defer p.Close(ctx)

		_, err = p.Parse(ctx, "echo", nil)
		require.ErrorIs(t, err, ErrLoad)
		require.ErrorIs(t, err, runtime.ErrModuleCompileFailed)

		// The failure is cached.
		_, err2 := p.Print(ctx, "echo", nil)
		require.ErrorIs(t, err2, ErrLoad)
	})

	t.Run("missing file", func(t *testing.T) {
		p, err := New(Config{Path: filepath.Join(t.TempDir(), "absent.wasm")})
		require.NoError(t, err)
		defer p.Close(ctx)

		_, err = p.Parse(ctx, "echo", nil)
		require.ErrorIs(t, err, ErrLoad)
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
