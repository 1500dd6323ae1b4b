package wasmlink

import (
	"bytes"
	"errors"
	"fmt"
)

var magic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Section ids.
const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionExport   = 7
	sectionCode     = 10
)

// Import and export kinds.
const (
	kindFunc   = 0x00
	kindTable  = 0x01
	kindMemory = 0x02
	kindGlobal = 0x03
	kindTag    = 0x04
)

const (
	valueTypeI32 = 0x7f
	funcTypeForm = 0x60
)

var errTruncated = errors.New("unexpected end of module")

type section struct {
	id      byte
	payload []byte
}

type funcType struct {
	params, results []byte
}

func (t funcType) is(params int, results int) bool {
	if len(t.params) != params || len(t.results) != results {
		return false
	}
	for _, v := range t.params {
		if v != valueTypeI32 {
			return false
		}
	}
	for _, v := range t.results {
		if v != valueTypeI32 {
			return false
		}
	}
	return true
}

// module is the part of a binary the linker needs to look at.
type module struct {
	sections []section

	types []funcType
	// funcTypes maps every function index, imports first, to its type.
	funcTypes     []uint32
	importedFuncs uint32
	exports       map[string]uint32
}

func parse(b []byte) (*module, error) {
	if !bytes.HasPrefix(b, magic) {
		return nil, errors.New("not a wasm binary")
	}

	m := &module{exports: make(map[string]uint32)}
	r := &reader{b: b[len(magic):]}
	for !r.done() {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		payload, err := r.vec()
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
		m.sections = append(m.sections, section{id: id, payload: payload})

		if err := m.index(id, &reader{b: payload}); err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
	}
	return m, nil
}

func (m *module) index(id byte, r *reader) error {
	switch id {
	case sectionType:
		return r.each(func() error {
			form, err := r.byte()
			if err != nil {
				return err
			}
			if form != funcTypeForm {
				return fmt.Errorf("unsupported type form 0x%x", form)
			}
			params, err := r.vec()
			if err != nil {
				return err
			}
			results, err := r.vec()
			if err != nil {
				return err
			}
			m.types = append(m.types, funcType{params: params, results: results})
			return nil
		})
	case sectionImport:
		return r.each(func() error {
			if _, err := r.vec(); err != nil {
				return err
			}
			if _, err := r.vec(); err != nil {
				return err
			}
			return m.importDesc(r)
		})
	case sectionFunction:
		return r.each(func() error {
			t, err := r.u32()
			if err != nil {
				return err
			}
			m.funcTypes = append(m.funcTypes, t)
			return nil
		})
	case sectionExport:
		return r.each(func() error {
			name, err := r.vec()
			if err != nil {
				return err
			}
			kind, err := r.byte()
			if err != nil {
				return err
			}
			idx, err := r.u32()
			if err != nil {
				return err
			}
			if kind == kindFunc {
				m.exports[string(name)] = idx
			}
			return nil
		})
	}
	return nil
}

func (m *module) importDesc(r *reader) error {
	kind, err := r.byte()
	if err != nil {
		return err
	}
	switch kind {
	case kindFunc:
		t, err := r.u32()
		if err != nil {
			return err
		}
		m.funcTypes = append(m.funcTypes, t)
		m.importedFuncs++
		return nil
	case kindTable:
		if _, err := r.byte(); err != nil {
			return err
		}
		return r.limits()
	case kindMemory:
		return r.limits()
	case kindGlobal:
		_, err := r.take(2)
		return err
	case kindTag:
		if _, err := r.byte(); err != nil {
			return err
		}
		_, err := r.u32()
		return err
	default:
		return fmt.Errorf("unknown import kind 0x%x", kind)
	}
}

func (m *module) funcType(idx uint32) (funcType, bool) {
	if int(idx) >= len(m.funcTypes) {
		return funcType{}, false
	}
	t := m.funcTypes[idx]
	if int(t) >= len(m.types) {
		return funcType{}, false
	}
	return m.types[t], true
}

// appendEntry adds one entry to the vector held by section id.
func (m *module) appendEntry(id byte, entry []byte) error {
	for i := range m.sections {
		s := &m.sections[i]
		if s.id != id {
			continue
		}
		r := &reader{b: s.payload}
		n, err := r.u32()
		if err != nil {
			return err
		}
		payload := appendU32(nil, n+1)
		payload = append(payload, r.b[r.off:]...)
		s.payload = append(payload, entry...)
		return nil
	}
	return fmt.Errorf("module has no section %d", id)
}

func (m *module) encode() []byte {
	out := append([]byte{}, magic...)
	for _, s := range m.sections {
		out = append(out, s.id)
		out = appendU32(out, uint32(len(s.payload)))
		out = append(out, s.payload...)
	}
	return out
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) done() bool { return r.off >= len(r.b) }

func (r *reader) byte() (byte, error) {
	if r.done() {
		return 0, errTruncated
	}
	c := r.b[r.off]
	r.off++
	return c, nil
}

func (r *reader) take(n uint32) ([]byte, error) {
	if uint64(len(r.b)-r.off) < uint64(n) {
		return nil, errTruncated
	}
	b := r.b[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *reader) u64() (uint64, error) {
	var v uint64
	for shift := 0; shift < 64; shift += 7 {
		c, err := r.byte()
		if err != nil {
			return 0, err
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, nil
		}
	}
	return 0, errors.New("LEB128 value too long")
}

func (r *reader) u32() (uint32, error) {
	v, err := r.u64()
	if err != nil {
		return 0, err
	}
	if v > uint64(^uint32(0)) {
		return 0, errors.New("LEB128 value overflows u32")
	}
	return uint32(v), nil
}

// vec reads a length-prefixed byte vector.
func (r *reader) vec() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.take(n)
}

func (r *reader) each(fn func() error) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for range n {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) limits() error {
	flags, err := r.byte()
	if err != nil {
		return err
	}
	if _, err := r.u64(); err != nil {
		return err
	}
	if flags&0x01 != 0 {
		_, err = r.u64()
	}
	return err
}

func appendU32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}
