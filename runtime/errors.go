package runtime

import "errors"

// Errors returned by runtimes. Callers match them with errors.Is.
var (
	// ErrRuntimeNotFound means no runtime is registered under Config.Type.
	ErrRuntimeNotFound = errors.New("runtime: unknown runtime")
	// ErrModuleCompileFailed wraps a compilation failure.
	ErrModuleCompileFailed = errors.New("runtime: compiling module")
	// ErrModuleInstantiateFailed wraps an instantiation failure.
	ErrModuleInstantiateFailed = errors.New("runtime: instantiating module")
	ErrFunctionNotExported     = errors.New("runtime: function not exported")
	ErrInvalidConfiguration    = errors.New("runtime: invalid configuration")
	ErrMemoryExportNotFound    = errors.New("runtime: memory not exported")
	// ErrHostFunctionNotFound is returned by CallHost.
	ErrHostFunctionNotFound = errors.New("runtime: host function not found")
)
