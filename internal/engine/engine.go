// Package engine implements the parse and print operations behind the
// module's "process" export. It is linked into the wasm guest and into the
// native runtime, so both produce byte-identical envelopes.
package engine

import (
	"bytes"
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"mvdan.cc/sh/v3/syntax"

	"github.com/un-ts/sh-syntax/ast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParserOptions mirrors the parser half of the process arguments.
type ParserOptions struct {
	KeepComments  bool
	Variant       syntax.LangVariant
	StopAt        string
	RecoverErrors int
}

// PrinterOptions mirrors the printer half of the process arguments.
type PrinterOptions struct {
	Indent           uint
	BinaryNextLine   bool
	SwitchCaseIndent bool
	SpaceRedirects   bool
	KeepPadding      bool
	Minify           bool
	SingleLine       bool
	FunctionNextLine bool
}

// Request is one decoded process call.
type Request struct {
	Filepath string
	Text     string
	Print    bool
	ParserOptions
	PrinterOptions
}

// Process runs the request and returns the JSON envelope. It never fails:
// engine errors are reported inside the envelope.
func Process(req Request) []byte {
	var env ast.Envelope

	if req.Print {
		text, err := Print(req.Text, req.Filepath, req.ParserOptions, req.PrinterOptions)
		if err != nil {
			env.ParseError, env.Message = mapError(err)
		} else {
			env.Text = &text
		}
	} else {
		file, err := Parse(req.Text, req.Filepath, req.ParserOptions)
		if err != nil {
			env.ParseError, env.Message = mapError(err)
		} else {
			env.File = mapFile(file)
		}
	}

	out, err := json.Marshal(&env)
	if err != nil {
		// Only reachable on a mapping bug; keep the framing valid.
		msg := err.Error()
		out, _ = json.Marshal(&ast.Envelope{Message: &msg})
	}
	return out
}

// Parse converts shell source into a syntax tree.
func Parse(text, filepath string, opts ParserOptions) (f *syntax.File, err error) {
	// Option constructors and the parser panic on invalid values, such as
	// an over-long stop word; report those as messages instead of killing
	// the guest.
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, panicError{r}
		}
	}()

	options := []syntax.ParserOption{
		syntax.KeepComments(opts.KeepComments),
		syntax.Variant(opts.Variant),
	}
	if opts.StopAt != "" {
		options = append(options, syntax.StopAt(opts.StopAt))
	}
	if opts.RecoverErrors != 0 {
		options = append(options, syntax.RecoverErrors(opts.RecoverErrors))
	}

	return syntax.NewParser(options...).Parse(strings.NewReader(text), filepath)
}

// Print parses text and prints it back with the printer options.
func Print(text, filepath string, popts ParserOptions, opts PrinterOptions) (string, error) {
	file, err := Parse(text, filepath, popts)
	if err != nil {
		return "", err
	}

	printer := syntax.NewPrinter(
		syntax.Indent(opts.Indent),
		syntax.BinaryNextLine(opts.BinaryNextLine),
		syntax.SwitchCaseIndent(opts.SwitchCaseIndent),
		syntax.SpaceRedirects(opts.SpaceRedirects),
		syntax.KeepPadding(opts.KeepPadding),
		syntax.Minify(opts.Minify),
		syntax.SingleLine(opts.SingleLine),
		syntax.FunctionNextLine(opts.FunctionNextLine),
	)

	var buf bytes.Buffer
	if err := printer.Print(&buf, file); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type panicError struct{ v any }

func (p panicError) Error() string {
	if err, ok := p.v.(error); ok {
		return err.Error()
	}
	if s, ok := p.v.(string); ok {
		return s
	}
	return "engine panic"
}

func mapError(err error) (*ast.ParseError, *string) {
	msg := err.Error()

	var pe syntax.ParseError
	if errors.As(err, &pe) {
		pos := mapPos(pe.Pos)
		return &ast.ParseError{
			Filename:   pe.Filename,
			Incomplete: pe.Incomplete,
			Text:       pe.Text,
			Pos:        &pos,
		}, &msg
	}

	// Dialect violations carry a position but no Text of their own.
	var le syntax.LangError
	if errors.As(err, &le) {
		pos := mapPos(le.Pos)
		prefix := le.Pos.String() + ": "
		if le.Filename != "" {
			prefix = le.Filename + ":" + prefix
		}
		return &ast.ParseError{
			Filename: le.Filename,
			Text:     strings.TrimPrefix(msg, prefix),
			Pos:      &pos,
		}, &msg
	}
	return nil, &msg
}
