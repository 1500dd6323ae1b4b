package mem

import (
	"runtime"
	"testing"
)

func resetPinnedAllocations() {
	pinnedAllocations = map[uint32][]byte{}
	output = nil
}

func TestAllocAndFree(t *testing.T) {
	resetPinnedAllocations()

	size := uint32(128)
	ptr := Alloc(size)
	if ptr == 0 {
		t.Fatal("Alloc returned null pointer")
	}
	if Live() != 1 {
		t.Fatalf("expected 1 pinned allocation, got %d", Live())
	}

	buf := Bytes(ptr, size)
	if len(buf) != int(size) {
		t.Fatalf("Bytes returned len=%d, want %d", len(buf), size)
	}

	Free(ptr)
	if Live() != 0 {
		t.Fatalf("expected pinned allocations to be empty, got %d", Live())
	}
}

func TestFreeUnknownPointerIsIgnored(t *testing.T) {
	resetPinnedAllocations()

	ptr := Alloc(4)
	Free(ptr + 1)
	if Live() != 1 {
		t.Fatalf("Free of unknown pointer changed live count to %d", Live())
	}
	Free(ptr)
	Free(ptr)
	if Live() != 0 {
		t.Fatalf("expected no live allocations, got %d", Live())
	}
}

func TestAllocZeroSize(t *testing.T) {
	resetPinnedAllocations()

	ptr := Alloc(0)
	if ptr != 0 {
		t.Fatalf("Alloc(0) returned %d, want 0", ptr)
	}
	if Live() != 0 {
		t.Fatalf("Alloc(0) should not pin memory, got %d pinned entries", Live())
	}

	if buf := Bytes(0, 0); buf != nil {
		t.Fatalf("Bytes(0, 0) = %v, want nil", buf)
	}
	if s := String(0, 0); s != "" {
		t.Fatalf("String(0, 0) = %q, want empty", s)
	}
}

func TestBytesSeesWrittenData(t *testing.T) {
	resetPinnedAllocations()

	ptr := Alloc(5)
	copy(Bytes(ptr, 5), "hello")
	if got := String(ptr, 3); got != "hel" {
		t.Fatalf("String = %q, want %q", got, "hel")
	}
}

func TestBytesPanicsOnUnknownPointer(t *testing.T) {
	resetPinnedAllocations()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for unknown pointer")
		}
	}()

	_ = Bytes(42, 1)
}

func TestBytesPanicsOnInvalidSize(t *testing.T) {
	resetPinnedAllocations()

	ptr := Alloc(8)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for invalid size")
		}
	}()

	_ = Bytes(ptr, 9)
}

func TestSetOutputIsTerminated(t *testing.T) {
	resetPinnedAllocations()

	ptr := SetOutput([]byte(`{"text":"x"}`))
	if ptr == 0 {
		t.Fatal("SetOutput returned null pointer")
	}
	if got := string(Output()); got != `{"text":"x"}` {
		t.Fatalf("Output = %q", got)
	}
	if output[len(output)-1] != 0 {
		t.Fatal("output is not zero terminated")
	}
	if Live() != 0 {
		t.Fatalf("output must not count as a live allocation, got %d", Live())
	}
}

func TestAllocStaysPinnedAcrossGC(t *testing.T) {
	resetPinnedAllocations()

	ptr := Alloc(64)
	runtime.GC()
	runtime.GC()

	buf := Bytes(ptr, 64)
	if len(buf) != 64 {
		t.Fatalf("Bytes returned len=%d, want 64", len(buf))
	}
}
