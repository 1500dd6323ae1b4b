// Package wasmlink completes the engine module produced by the Go
// toolchain.
//
// The Go compiler rejects exports with more than 16 parameters, so the
// guest exports process in two halves. Link appends a process function
// with the full signature that passes its arguments on to the halves.
package wasmlink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/un-ts/sh-syntax/internal/abi"
)

// ErrAlreadyLinked is returned by Link when the module exports process.
var ErrAlreadyLinked = errors.New("wasmlink: process is already exported")

// Instructions used by the trampoline.
const (
	opLocalGet = 0x20
	opCall     = 0x10
	opEnd      = 0x0b
)

// Link returns a copy of the module with a process export forwarding to
// processBegin and processEnd.
func Link(binary []byte) ([]byte, error) {
	m, err := parse(binary)
	if err != nil {
		return nil, fmt.Errorf("wasmlink: %w", err)
	}
	if _, ok := m.exports[abi.ExportProcess]; ok {
		return nil, ErrAlreadyLinked
	}

	begin, err := m.export(abi.ExportProcessBegin, abi.ProcessSplit, 0)
	if err != nil {
		return nil, err
	}
	end, err := m.export(abi.ExportProcessEnd, abi.ProcessParams-abi.ProcessSplit, 1)
	if err != nil {
		return nil, err
	}

	typeIdx := uint32(len(m.types))
	funcIdx := uint32(len(m.funcTypes))

	sig := []byte{funcTypeForm}
	sig = appendU32(sig, abi.ProcessParams)
	for range abi.ProcessParams {
		sig = append(sig, valueTypeI32)
	}
	sig = append(sig, 0x01, valueTypeI32)

	exp := appendU32(nil, uint32(len(abi.ExportProcess)))
	exp = append(exp, abi.ExportProcess...)
	exp = append(exp, kindFunc)
	exp = appendU32(exp, funcIdx)

	body := trampoline(begin, end)
	code := appendU32(nil, uint32(len(body)))
	code = append(code, body...)

	for _, e := range []struct {
		section byte
		entry   []byte
	}{
		{sectionType, sig},
		{sectionFunction, appendU32(nil, typeIdx)},
		{sectionExport, exp},
		{sectionCode, code},
	} {
		if err := m.appendEntry(e.section, e.entry); err != nil {
			return nil, fmt.Errorf("wasmlink: %w", err)
		}
	}
	return m.encode(), nil
}

// export resolves an exported function and checks it takes params i32
// arguments and returns results i32 values.
func (m *module) export(name string, params, results int) (uint32, error) {
	idx, ok := m.exports[name]
	if !ok {
		return 0, fmt.Errorf("wasmlink: %s is not exported", name)
	}
	t, ok := m.funcType(idx)
	if !ok || !t.is(params, results) {
		return 0, fmt.Errorf("wasmlink: %s must take %d i32 and return %d i32", name, params, results)
	}
	return idx, nil
}

func trampoline(begin, end uint32) []byte {
	body := []byte{0x00} // no locals
	for i := range abi.ProcessParams {
		if i == abi.ProcessSplit {
			body = append(body, opCall)
			body = appendU32(body, begin)
		}
		body = append(body, opLocalGet)
		body = appendU32(body, uint32(i))
	}
	body = append(body, opCall)
	body = appendU32(body, end)
	return append(body, opEnd)
}

// Build compiles the engine command pkg, relative to dir, as a wasip1
// reactor, links it and writes the module to out.
func Build(ctx context.Context, dir, pkg, out string) error {
	tmp, err := os.MkdirTemp("", "sh-syntax-build")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	raw := filepath.Join(tmp, "raw.wasm")
	cmd := exec.CommandContext(ctx, "go", "build", "-buildmode=c-shared", "-o", raw, pkg)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to build %s: %w\n%s", pkg, err, output)
	}

	binary, err := os.ReadFile(raw)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", raw, err)
	}
	linked, err := Link(binary)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, linked, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	return nil
}
