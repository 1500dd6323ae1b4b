// Package runtime abstracts the engine that executes the sh-syntax module.
//
// A Runtime compiles the module once and instantiates it together with the
// host module it imports. Implementations register themselves by name (see
// Register) and are selected through Config.Type.
package runtime

import "context"

// Runtime compiles and instantiates modules.
type Runtime interface {
	Compile(ctx context.Context, binary []byte) (CompiledModule, error)
	// InstantiateWithHost links hostModule, which may be nil, and creates
	// a ready-to-call instance of module.
	InstantiateWithHost(ctx context.Context, module CompiledModule, hostModule HostModule) (ModuleInstance, Context, error)
	Close(ctx context.Context) error
}

// CompiledModule is the output of Compile.
type CompiledModule interface {
	Close(ctx context.Context) error
}

// ModuleInstance is an instantiated module. It is not safe for concurrent
// calls.
type ModuleInstance interface {
	// Function returns the named export, or nil.
	Function(name string) FunctionInstance
	// Memory returns the exported linear memory, or nil.
	Memory() Memory
	Close(ctx context.Context) error
}

// FunctionInstance is an exported function. A trap is returned as an error.
type FunctionInstance interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Memory is a view of an instance's linear memory. Read and Write report
// false when the range falls outside the memory.
type Memory interface {
	Read(offset uint32, size uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
	// Size is the current length in bytes.
	Size() uint32
}

// Context is the per-instance state a runtime keeps beside the module,
// such as its WASI system.
type Context interface {
	// WithRuntimeContext derives the context guest exports must be called
	// with.
	WithRuntimeContext(ctx context.Context) context.Context
	Close(ctx context.Context) error
}

// HostModule is the set of functions the module imports from the host.
type HostModule interface {
	// Name is the import module name, "sh-syntax" for the engine.
	Name() string
	Functions() []HostFunction
}
