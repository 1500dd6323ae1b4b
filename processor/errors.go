package processor

import (
	"errors"
	"fmt"

	"github.com/un-ts/sh-syntax/ast"
)

var (
	// ErrUsage is wrapped by every *UsageError.
	ErrUsage = errors.New("sh-syntax: invalid usage")
	// ErrLoad reports that the engine module could not be loaded. It is
	// cached by the processor and returned on every later call.
	ErrLoad = errors.New("sh-syntax: engine module load failed")
	// ErrAllocation reports that guest memory could not be obtained for a
	// call argument.
	ErrAllocation = errors.New("sh-syntax: allocation failed")
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("sh-syntax: processor closed")
)

// SyntaxError is an engine failure reported as a bare message, without
// a structured position.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string {
	return e.Message
}

// ParseError is a structured parse failure reported by the engine.
type ParseError struct {
	Filename   string
	Incomplete bool
	Text       string
	Pos        ast.Pos
	// Message is the engine's full rendering, including the position.
	Message string
}

func (e *ParseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Text
}

// TransportError reports a result payload that could not be decoded. It
// always counts as incomplete.
type TransportError struct {
	Reason     string
	Incomplete bool
	Err        error
}

func newTransportError(reason string, err error) *TransportError {
	return &TransportError{Reason: reason, Incomplete: true, Err: err}
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sh-syntax: malformed result: %s: %v", e.Reason, e.Err)
	}
	return "sh-syntax: malformed result: " + e.Reason
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UsageError is a precondition failure detected before the engine runs.
type UsageError struct {
	Option string
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("sh-syntax: invalid option %s: %s", e.Option, e.Reason)
}

func (e *UsageError) Unwrap() error {
	return ErrUsage
}

// translate converts a decoded envelope into the error it carries, or nil
// when the envelope holds a result.
func translate(env *ast.Envelope) error {
	if pe := env.ParseError; pe != nil {
		err := &ParseError{
			Filename:   pe.Filename,
			Incomplete: pe.Incomplete,
			Text:       pe.Text,
		}
		if pe.Pos != nil {
			err.Pos = *pe.Pos
		}
		if env.Message != nil {
			err.Message = *env.Message
		}
		return err
	}
	if env.Message != nil {
		return &SyntaxError{Message: *env.Message}
	}
	if env.File == nil && env.Text == nil {
		return newTransportError("envelope has neither a result nor an error", nil)
	}
	return nil
}
