package processor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/un-ts/sh-syntax/internal/abi"
)

const (
	wasmTypeFunc0To0 = iota
	wasmTypeFunc0ToI32
	wasmTypeFuncI32ToI32
	wasmTypeFuncI32To0
	wasmTypeFuncProcess
)

// Globals of the test module.
const (
	globalHeap = iota
	globalAllocs
	globalFrees
)

const (
	testHeapBase      = 4096
	testPayloadOffset = 64
)

type wasmFunctionSpec struct {
	name      string
	typeIndex byte
	body      []byte
}

// Function bodies, without the local declaration prefix.
var (
	// bump allocator: returns the heap pointer and advances it by size
	bodyAlloc = concat(
		[]byte{0x23, globalHeap},
		[]byte{0x23, globalHeap, 0x20, 0x00, 0x6a, 0x24, globalHeap},
		bodyIncrement(globalAllocs),
	)
	bodyAllocNull = concat(i32Const(0))
	bodyFree      = bodyIncrement(globalFrees)
	bodyProcess   = i32Const(testPayloadOffset)
	bodyTrap      = []byte{0x00} // unreachable
	bodyNop       = []byte{}
	bodyAllocs    = []byte{0x23, globalAllocs}
	bodyFrees     = []byte{0x23, globalFrees}
)

// engineModule describes a fake engine: the three ABI exports plus
// allocs/frees counters, and payload stored zero-terminated at
// testPayloadOffset.
type engineModule struct {
	alloc   []byte
	free    []byte
	process []byte
	payload string
	// omit leaves an export out.
	omit string
	// noMemory leaves the memory export out.
	noMemory bool
}

func (m engineModule) build() []byte {
	if m.alloc == nil {
		m.alloc = bodyAlloc
	}
	if m.free == nil {
		m.free = bodyFree
	}
	if m.process == nil {
		m.process = bodyProcess
	}

	var fns []wasmFunctionSpec
	for _, fn := range []wasmFunctionSpec{
		{name: "_initialize", typeIndex: wasmTypeFunc0To0, body: bodyNop},
		{name: abi.ExportAlloc, typeIndex: wasmTypeFuncI32ToI32, body: m.alloc},
		{name: abi.ExportFree, typeIndex: wasmTypeFuncI32To0, body: m.free},
		{name: abi.ExportProcess, typeIndex: wasmTypeFuncProcess, body: m.process},
		{name: "allocs", typeIndex: wasmTypeFunc0ToI32, body: bodyAllocs},
		{name: "frees", typeIndex: wasmTypeFunc0ToI32, body: bodyFrees},
	} {
		if fn.name != m.omit {
			fns = append(fns, fn)
		}
	}

	var data []byte
	if m.payload != "" {
		data = append([]byte(m.payload), 0)
	}
	return buildTestModule(!m.noMemory, fns, data)
}

func writeTempModule(t *testing.T, module []byte) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.wasm")
	if err := os.WriteFile(path, module, 0o600); err != nil {
		t.Fatalf("failed to write test module: %v", err)
	}
	return path
}

func buildTestModule(exportMemory bool, functions []wasmFunctionSpec, data []byte) []byte {
	module := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
	}

	appendSection := func(sectionID byte, payload []byte) {
		module = append(module, sectionID)
		module = append(module, encodeULEB128Test(uint32(len(payload)))...)
		module = append(module, payload...)
	}

	// Type section:
	// 0: () -> ()
	// 1: () -> i32
	// 2: (i32) -> i32
	// 3: (i32) -> ()
	// 4: (i32 x 21) -> i32
	types := []byte{
		0x05,             // 5 types
		0x60, 0x00, 0x00, // () -> ()
		0x60, 0x00, 0x01, 0x7f, // () -> i32
		0x60, 0x01, 0x7f, 0x01, 0x7f, // (i32) -> i32
		0x60, 0x01, 0x7f, 0x00, // (i32) -> ()
		0x60, abi.ProcessParams,
	}
	for range abi.ProcessParams {
		types = append(types, 0x7f)
	}
	types = append(types, 0x01, 0x7f)
	appendSection(0x01, types)

	// Function section
	funcPayload := append([]byte{}, encodeULEB128Test(uint32(len(functions)))...)
	for _, fn := range functions {
		funcPayload = append(funcPayload, fn.typeIndex)
	}
	appendSection(0x03, funcPayload)

	// Memory section: one memory, min 2 pages. Declared even when not
	// exported so the data segment has a target.
	appendSection(0x05, []byte{
		0x01, // 1 memory
		0x00, // only min limit
		0x02, // min 2 pages
	})

	// Global section: heap pointer, alloc counter, free counter.
	globals := []byte{0x03}
	for _, init := range []int32{testHeapBase, 0, 0} {
		globals = append(globals, 0x7f, 0x01) // mutable i32
		globals = append(globals, i32Const(init)...)
		globals = append(globals, 0x0b)
	}
	appendSection(0x06, globals)

	// Export section
	exportCount := len(functions)
	if exportMemory {
		exportCount++
	}
	exportPayload := append([]byte{}, encodeULEB128Test(uint32(exportCount))...)
	if exportMemory {
		exportPayload = append(exportPayload, encodeULEB128Test(uint32(len(abi.ExportMemory)))...)
		exportPayload = append(exportPayload, abi.ExportMemory...)
		exportPayload = append(exportPayload, 0x02, 0x00) // memory index 0
	}
	for i, fn := range functions {
		exportPayload = append(exportPayload, encodeULEB128Test(uint32(len(fn.name)))...)
		exportPayload = append(exportPayload, fn.name...)
		exportPayload = append(exportPayload, 0x00) // export kind: func
		exportPayload = append(exportPayload, encodeULEB128Test(uint32(i))...)
	}
	appendSection(0x07, exportPayload)

	// Code section
	codePayload := append([]byte{}, encodeULEB128Test(uint32(len(functions)))...)
	for _, fn := range functions {
		body := concat([]byte{0x00}, fn.body, []byte{0x0b}) // no locals, end
		codePayload = append(codePayload, encodeULEB128Test(uint32(len(body)))...)
		codePayload = append(codePayload, body...)
	}
	appendSection(0x0a, codePayload)

	// Data section: one active segment at testPayloadOffset.
	if len(data) > 0 {
		dataPayload := []byte{0x01, 0x00}
		dataPayload = append(dataPayload, i32Const(testPayloadOffset)...)
		dataPayload = append(dataPayload, 0x0b)
		dataPayload = append(dataPayload, encodeULEB128Test(uint32(len(data)))...)
		dataPayload = append(dataPayload, data...)
		appendSection(0x0b, dataPayload)
	}

	return module
}

// bodyIncrement adds one to a global.
func bodyIncrement(global byte) []byte {
	return concat([]byte{0x23, global}, i32Const(1), []byte{0x6a, 0x24, global})
}

func i32Const(v int32) []byte {
	return append([]byte{0x41}, encodeSLEB128Test(v)...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func encodeULEB128Test(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func encodeSLEB128Test(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
