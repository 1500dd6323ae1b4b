package runtime

import (
	"fmt"

	"go.uber.org/zap"
)

// Runtime types known to this module.
const (
	TypeWazero = "wazero"
	TypeNative = "native"
)

// Wazero execution modes.
const (
	ModeInterpreter = "interpreter"
	ModeCompiled    = "compiled"
)

// PageSize is the size of a wasm memory page.
const PageSize = 65536

// MaxPages is the largest memory a 32-bit guest can address.
const MaxPages = 65536

// Config selects and configures a runtime.
type Config struct {
	// Type is the registered runtime name. Empty means wazero.
	Type string `mapstructure:"type"`
	// Mode is the wazero execution mode. Empty means interpreter.
	Mode string `mapstructure:"mode"`
	// MemoryLimitPages caps guest linear memory in 64KiB pages. Zero keeps
	// the runtime default.
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages"`
	// Logger receives guest stderr and runtime diagnostics.
	Logger *zap.Logger `mapstructure:"-"`
}

// Default fills zero fields.
func (c *Config) Default() {
	if c.Type == "" {
		c.Type = TypeWazero
	}
	if c.Mode == "" {
		c.Mode = ModeInterpreter
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case "", ModeInterpreter, ModeCompiled:
	default:
		return fmt.Errorf("unknown runtime mode %q: %w", c.Mode, ErrInvalidConfiguration)
	}
	if c.MemoryLimitPages > MaxPages {
		return fmt.Errorf("memory_limit_pages %d exceeds %d: %w", c.MemoryLimitPages, MaxPages, ErrInvalidConfiguration)
	}
	return nil
}
