package processor

import (
	"bytes"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	"github.com/un-ts/sh-syntax/ast"
	"github.com/un-ts/sh-syntax/runtime"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	framePrefix = []byte(`{"`)
	frameSuffix = []byte(`}`)
)

// decode reads the zero-terminated payload at ptr. The region belongs to
// the guest and is neither modified nor freed.
func decode(mem runtime.Memory, ptr uint32) (*ast.Envelope, error) {
	if ptr == 0 {
		return nil, newTransportError("null result pointer", nil)
	}
	size := mem.Size()
	if ptr >= size {
		return nil, newTransportError("result pointer out of range", nil)
	}

	b, ok := mem.Read(ptr, size-ptr)
	if !ok {
		return nil, newTransportError("result pointer out of range", nil)
	}
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		return nil, newTransportError("result is not zero terminated", nil)
	}
	return decodePayload(b[:n])
}

// decodePayload validates the framing of an envelope and deserializes it.
func decodePayload(b []byte) (*ast.Envelope, error) {
	if !utf8.Valid(b) {
		return nil, newTransportError("result is not valid UTF-8", nil)
	}
	if !bytes.HasPrefix(b, framePrefix) || !bytes.HasSuffix(b, frameSuffix) {
		return nil, newTransportError("result is not a JSON object", nil)
	}

	var env ast.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, newTransportError("decoding envelope", err)
	}
	return &env, nil
}
