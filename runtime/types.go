package runtime

import "context"

// HostFunc is a runtime-agnostic host function. Parameters are read from
// stack and results are written back into it, as wazero's GoModuleFunc does.
type HostFunc func(ctx context.Context, mod ModuleInstance, stack []uint64)

// HostFunction represents a single host function definition
type HostFunction struct {
	Name        string
	ParamTypes  []ValueType
	ResultTypes []ValueType
	Func        HostFunc
}

// ValueType represents WASM value types
type ValueType int

const (
	ValueTypeI32 ValueType = iota
	ValueTypeI64
	ValueTypeF32
	ValueTypeF64
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return "unknown"
	}
}
