package native

import (
	"sort"

	"github.com/un-ts/sh-syntax/runtime"
)

// heapBase keeps address 0 and a small prefix unused so that a null
// pointer is never a valid allocation.
const heapBase = 1024

const align = 8

type region struct {
	start, end uint32
}

// linearMemory is a growable byte slice with a first-fit allocator.
type linearMemory struct {
	buf      []byte
	maxPages uint32
	live     []region // sorted by start
}

func newLinearMemory(maxPages uint32) *linearMemory {
	return &linearMemory{
		buf:      make([]byte, runtime.PageSize),
		maxPages: maxPages,
	}
}

func (m *linearMemory) Read(offset, size uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(size)
	if end > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset:end:end], true
}

func (m *linearMemory) Write(offset uint32, data []byte) bool {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], data)
	return true
}

func (m *linearMemory) Size() uint32 {
	return uint32(len(m.buf))
}

// alloc returns the address of a fresh region of size bytes, or 0 when the
// memory cannot grow any further.
func (m *linearMemory) alloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	need := (uint64(size) + align - 1) &^ (align - 1)
	at := uint64(heapBase)
	idx := len(m.live)
	for i, r := range m.live {
		if uint64(r.start)-at >= need {
			idx = i
			break
		}
		at = uint64(r.end)
	}

	if !m.grow(at + need) {
		return 0
	}

	r := region{start: uint32(at), end: uint32(at + need)}
	m.live = append(m.live, region{})
	copy(m.live[idx+1:], m.live[idx:])
	m.live[idx] = r
	clear(m.buf[r.start:r.end])
	return r.start
}

// free releases the region starting at ptr. Unknown addresses are ignored.
func (m *linearMemory) free(ptr uint32) {
	i := sort.Search(len(m.live), func(i int) bool { return m.live[i].start >= ptr })
	if i < len(m.live) && m.live[i].start == ptr {
		m.live = append(m.live[:i], m.live[i+1:]...)
	}
}

func (m *linearMemory) grow(end uint64) bool {
	if end <= uint64(len(m.buf)) {
		return true
	}
	pages := (end + runtime.PageSize - 1) / runtime.PageSize
	if pages > uint64(m.maxPages) {
		return false
	}
	buf := make([]byte, pages*runtime.PageSize)
	copy(buf, m.buf)
	m.buf = buf
	return true
}
