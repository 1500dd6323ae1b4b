// Package native registers a runtime that links the engine into the host
// process. It implements the same exports as the wasm build over a
// simulated linear memory, so callers cannot tell the two apart.
package native

import "github.com/un-ts/sh-syntax/runtime"

func init() {
	runtime.Register(runtime.TypeNative, newNativeRuntime)
}
