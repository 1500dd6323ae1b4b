// Package wazero registers the wazero-backed runtime.
package wazero

import "github.com/un-ts/sh-syntax/runtime"

func init() {
	runtime.Register(runtime.TypeWazero, newWazeroRuntime)
}
