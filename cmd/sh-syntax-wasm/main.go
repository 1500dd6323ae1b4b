//go:build wasip1

// Command sh-syntax-wasm is the engine module loaded by the processor.
//
// The process export is completed by a trampoline added at link time, so
// build it with sh-syntax-build rather than go build:
//
//	go run ./cmd/sh-syntax-build -o main.wasm ./cmd/sh-syntax-wasm
package main

import (
	"go.uber.org/zap"

	"github.com/un-ts/sh-syntax/internal/abi"
	"github.com/un-ts/sh-syntax/internal/engine"
	"github.com/un-ts/sh-syntax/internal/guest/logging"
	"github.com/un-ts/sh-syntax/internal/guest/mem"
)

var logger = logging.NewLogger().Named("engine")

// params holds the arguments of the call in progress between
// processBegin and processEnd.
var params [abi.ProcessParams]uint64

func main() {}

//go:wasmexport wasmAlloc
func wasmAlloc(size uint32) uint32 {
	return mem.Alloc(size)
}

//go:wasmexport wasmFree
func wasmFree(ptr uint32) {
	mem.Free(ptr)
}

//go:wasmexport processBegin
func processBegin(
	filepathPtr, filepathLen, filepathCap uint32,
	textPtr, textLen, textCap uint32,
	isPrint, keepComments, variant uint32,
	stopAtPtr, stopAtLen uint32,
) {
	params = [abi.ProcessParams]uint64{
		uint64(filepathPtr), uint64(filepathLen), uint64(filepathCap),
		uint64(textPtr), uint64(textLen), uint64(textCap),
		uint64(isPrint), uint64(keepComments), uint64(variant),
		uint64(stopAtPtr), uint64(stopAtLen),
	}
}

//go:wasmexport processEnd
func processEnd(
	stopAtCap uint32,
	recoverErrors, indent uint32,
	binaryNextLine, switchCaseIndent, spaceRedirects, keepPadding uint32,
	minify, singleLine, functionNextLine uint32,
) uint32 {
	rest := [...]uint32{
		stopAtCap,
		recoverErrors, indent,
		binaryNextLine, switchCaseIndent, spaceRedirects, keepPadding,
		minify, singleLine, functionNextLine,
	}
	for i, v := range rest {
		params[abi.ProcessSplit+i] = uint64(v)
	}

	args, _ := abi.ArgsFromParams(params[:])
	params = [abi.ProcessParams]uint64{}

	out := engine.ProcessArgs(&args, mem.String)
	logger.Debug("processed", zap.Bool("print", args.Print), zap.Int("bytes", len(out)))
	return mem.SetOutput(out)
}
