package runtime

import "context"

// SimpleHostModule is a HostModule built from plain function values.
type SimpleHostModule struct {
	name      string
	functions []HostFunction
}

// NewHostModule creates a new host module with the given name
func NewHostModule(name string) *SimpleHostModule {
	return &SimpleHostModule{name: name}
}

// AddFunction adds a host function to the module
func (hm *SimpleHostModule) AddFunction(name string, paramTypes, resultTypes []ValueType, fn HostFunc) *SimpleHostModule {
	hm.functions = append(hm.functions, HostFunction{
		Name:        name,
		ParamTypes:  paramTypes,
		ResultTypes: resultTypes,
		Func:        fn,
	})
	return hm
}

// Name returns the import module name.
func (hm *SimpleHostModule) Name() string {
	return hm.name
}

// Functions returns all host function definitions
func (hm *SimpleHostModule) Functions() []HostFunction {
	return hm.functions
}

// CallHost invokes a function of host by name. Runtimes without an import
// mechanism of their own use it to reach host functions.
func CallHost(ctx context.Context, host HostModule, mod ModuleInstance, name string, stack []uint64) error {
	if host == nil {
		return ErrHostFunctionNotFound
	}
	for _, f := range host.Functions() {
		if f.Name == name {
			f.Func(ctx, mod, stack)
			return nil
		}
	}
	return ErrHostFunctionNotFound
}
