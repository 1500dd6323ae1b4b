// Package mem manages guest memory handed out to the host.
package mem

import (
	"fmt"
	"unsafe"
)

// pinnedAllocations keeps references to host-requested buffers until the
// host frees them, preventing the GC from reclaiming them too early.
var pinnedAllocations = map[uint32][]byte{}

// output is the last result payload. It stays pinned until the next call
// replaces it, so the host can read it after the export returns.
var output []byte

// Alloc allocates and pins a byte buffer in guest memory.
func Alloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	buf := make([]byte, size)
	ptr := addr(buf)
	pinnedAllocations[ptr] = buf
	return ptr
}

// Free unpins a buffer returned by Alloc. Unknown pointers are ignored.
func Free(ptr uint32) {
	delete(pinnedAllocations, ptr)
}

// Bytes returns the first size bytes of a pinned allocation.
func Bytes(ptr, size uint32) []byte {
	if ptr == 0 && size == 0 {
		return nil
	}

	buf, ok := pinnedAllocations[ptr]
	if !ok {
		panic(fmt.Sprintf("Bytes: unknown pointer %d", ptr))
	}
	if size > uint32(len(buf)) {
		panic(fmt.Sprintf("Bytes: size %d exceeds allocation %d", size, len(buf)))
	}
	return buf[:size]
}

// String is like Bytes but copies the contents into a string.
func String(ptr, size uint32) string {
	return string(Bytes(ptr, size))
}

// SetOutput stores b followed by a zero terminator as the current result
// payload and returns its address. The previous payload is released.
func SetOutput(b []byte) uint32 {
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	output = buf
	return addr(buf)
}

// Output returns the current result payload without its terminator.
func Output() []byte {
	if len(output) == 0 {
		return nil
	}
	return output[:len(output)-1]
}

// BytesToPtr returns the address and length of b. The caller must keep b
// alive until the host is done reading it.
func BytesToPtr(b []byte) (uint32, uint32) {
	if len(b) == 0 {
		return 0, 0
	}
	return addr(b), uint32(len(b))
}

// Live returns the number of allocations not yet freed.
func Live() int {
	return len(pinnedAllocations)
}

func addr(buf []byte) uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
}
