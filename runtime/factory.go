package runtime

import (
	"fmt"
	"sort"
	"sync"
)

// Factory is a function that creates a new Runtime
type Factory func(config Config) (Runtime, error)

var (
	mu               sync.RWMutex
	runtimeFactories = make(map[string]Factory)
)

// Register registers a runtime factory
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := runtimeFactories[name]; exists {
		panic(fmt.Sprintf("runtime %s already registered", name))
	}
	runtimeFactories[name] = factory
}

// NewRuntime creates a new Runtime from config
func NewRuntime(config Config) (Runtime, error) {
	config.Default()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	mu.RLock()
	factory, ok := runtimeFactories[config.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown runtime type: %s: %w", config.Type, ErrRuntimeNotFound)
	}

	return factory(config)
}

// List returns all registered runtime types
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]string, 0, len(runtimeFactories))
	for t := range runtimeFactories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
