package engine

import (
	"mvdan.cc/sh/v3/syntax"

	"github.com/un-ts/sh-syntax/internal/abi"
)

// NewRequest builds a request from the process arguments and the strings
// they point to.
func NewRequest(a *abi.Args, filepath, text, stopAt string) Request {
	return Request{
		Filepath: filepath,
		Text:     text,
		Print:    a.Print,
		ParserOptions: ParserOptions{
			KeepComments:  a.KeepComments,
			Variant:       syntax.LangVariant(a.Variant),
			StopAt:        stopAt,
			RecoverErrors: int(a.RecoverErrors),
		},
		PrinterOptions: PrinterOptions{
			Indent:           uint(a.Indent),
			BinaryNextLine:   a.BinaryNextLine,
			SwitchCaseIndent: a.SwitchCaseIndent,
			SpaceRedirects:   a.SpaceRedirects,
			KeepPadding:      a.KeepPadding,
			Minify:           a.Minify,
			SingleLine:       a.SingleLine,
			FunctionNextLine: a.FunctionNextLine,
		},
	}
}

// ProcessArgs resolves the string arguments through read and runs the
// request. read receives the (ptr, len) pairs exactly as passed by the host.
func ProcessArgs(a *abi.Args, read func(ptr, size uint32) string) []byte {
	req := NewRequest(a,
		read(a.FilepathPtr, a.FilepathLen),
		read(a.TextPtr, a.TextLen),
		read(a.StopAtPtr, a.StopAtLen),
	)
	return Process(req)
}
