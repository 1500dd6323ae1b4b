package wazero

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/un-ts/sh-syntax/runtime"
)

// newWazeroRuntime creates a new Wazero runtime instance
func newWazeroRuntime(config runtime.Config) (runtime.Runtime, error) {
	config.Default()

	// Create wazero runtime config based on mode
	var wrc wazero.RuntimeConfig
	switch config.Mode {
	case runtime.ModeCompiled:
		wrc = wazero.NewRuntimeConfigCompiler()
	default:
		wrc = wazero.NewRuntimeConfigInterpreter()
	}
	if config.MemoryLimitPages > 0 {
		wrc = wrc.WithMemoryLimitPages(config.MemoryLimitPages)
	}

	return &wazeroRuntime{
		runtime: wazero.NewRuntimeWithConfig(context.Background(), wrc),
		config:  config,
	}, nil
}
