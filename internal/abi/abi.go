// Package abi describes the calling convention of the engine module.
package abi

// ProcessParams is the number of i32 arguments taken by the process export.
const ProcessParams = 21

// Export names of the module ABI.
const (
	ExportAlloc   = "wasmAlloc"
	ExportFree    = "wasmFree"
	ExportProcess = "process"
	ExportMemory  = "memory"
)

// The Go compiler cannot export a function with more than 16 parameters,
// so the guest exports process in two halves and a linked-in trampoline
// forwards the first ProcessSplit arguments to ExportProcessBegin and the
// rest to ExportProcessEnd, which returns the result.
const (
	ExportProcessBegin = "processBegin"
	ExportProcessEnd   = "processEnd"
	ProcessSplit       = 11
)

// Args is the positional argument list of the process export, in order.
// String arguments are passed as (ptr, len, cap); the guest ignores cap.
type Args struct {
	FilepathPtr, FilepathLen, FilepathCap uint32
	TextPtr, TextLen, TextCap             uint32
	Print                                 bool
	KeepComments                          bool
	Variant                               uint8
	StopAtPtr, StopAtLen, StopAtCap       uint32
	RecoverErrors                         uint32
	Indent                                uint32
	BinaryNextLine                        bool
	SwitchCaseIndent                      bool
	SpaceRedirects                        bool
	KeepPadding                           bool
	Minify                                bool
	SingleLine                            bool
	FunctionNextLine                      bool
}

// Params flattens the arguments into raw wasm call parameters.
func (a *Args) Params() []uint64 {
	return []uint64{
		uint64(a.FilepathPtr), uint64(a.FilepathLen), uint64(a.FilepathCap),
		uint64(a.TextPtr), uint64(a.TextLen), uint64(a.TextCap),
		flag(a.Print),
		flag(a.KeepComments),
		uint64(a.Variant),
		uint64(a.StopAtPtr), uint64(a.StopAtLen), uint64(a.StopAtCap),
		uint64(a.RecoverErrors),
		uint64(a.Indent),
		flag(a.BinaryNextLine),
		flag(a.SwitchCaseIndent),
		flag(a.SpaceRedirects),
		flag(a.KeepPadding),
		flag(a.Minify),
		flag(a.SingleLine),
		flag(a.FunctionNextLine),
	}
}

// ArgsFromParams is the inverse of Params. It returns false when the
// parameter count does not match the ABI.
func ArgsFromParams(p []uint64) (Args, bool) {
	if len(p) != ProcessParams {
		return Args{}, false
	}
	return Args{
		FilepathPtr: uint32(p[0]), FilepathLen: uint32(p[1]), FilepathCap: uint32(p[2]),
		TextPtr: uint32(p[3]), TextLen: uint32(p[4]), TextCap: uint32(p[5]),
		Print:        uint32(p[6]) != 0,
		KeepComments: uint32(p[7]) != 0,
		Variant:      uint8(p[8]),
		StopAtPtr:    uint32(p[9]), StopAtLen: uint32(p[10]), StopAtCap: uint32(p[11]),
		RecoverErrors:    uint32(p[12]),
		Indent:           uint32(p[13]),
		BinaryNextLine:   uint32(p[14]) != 0,
		SwitchCaseIndent: uint32(p[15]) != 0,
		SpaceRedirects:   uint32(p[16]) != 0,
		KeepPadding:      uint32(p[17]) != 0,
		Minify:           uint32(p[18]) != 0,
		SingleLine:       uint32(p[19]) != 0,
		FunctionNextLine: uint32(p[20]) != 0,
	}, true
}

func flag(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
