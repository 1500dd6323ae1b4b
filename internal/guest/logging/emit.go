//go:build wasm

package logging

import (
	"runtime"

	"github.com/un-ts/sh-syntax/internal/guest/mem"
)

//go:wasmimport sh-syntax log
func hostLog(ptr, size uint32)

func emit(b []byte) {
	ptr, size := mem.BytesToPtr(b)
	hostLog(ptr, size)
	runtime.KeepAlive(b) // until ptr is no longer needed
}
