package processor

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/multierr"
)

// Stats counts engine activity over the life of a processor.
type Stats struct {
	// Calls is the number of engine invocations.
	Calls uint64
	// Allocations and Frees count guest argument regions. They are equal
	// whenever no call is in flight.
	Allocations uint64
	Frees       uint64
	// Failures counts calls that returned an error of any kind.
	Failures uint64
}

type counters struct {
	calls       atomic.Uint64
	allocations atomic.Uint64
	frees       atomic.Uint64
	failures    atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Calls:       c.calls.Load(),
		Allocations: c.allocations.Load(),
		Frees:       c.frees.Load(),
		Failures:    c.failures.Load(),
	}
}

// arena owns the guest regions of one call. Every region it allocates is
// freed exactly once by release.
type arena struct {
	ctx     context.Context
	mod     *module
	stats   *counters
	regions []uint32
}

func newArena(ctx context.Context, mod *module, stats *counters) *arena {
	return &arena{ctx: ctx, mod: mod, stats: stats}
}

// region is an argument copied into guest memory.
type region struct {
	ptr, size uint32
}

// put copies each value into a fresh guest region. All regions are
// allocated before any is written, so an allocation failure leaves guest
// memory untouched. Empty values are passed as (0, 0) without allocating.
func (a *arena) put(values ...string) ([]region, error) {
	out := make([]region, len(values))
	for i, v := range values {
		if len(v) == 0 {
			continue
		}
		if uint64(len(v)) > uint64(^uint32(0)) {
			return nil, fmt.Errorf("%w: %d bytes exceed the guest address space", ErrAllocation, len(v))
		}
		size := uint32(len(v))

		res, err := a.mod.alloc.Call(a.ctx, uint64(size))
		if err != nil {
			return nil, fmt.Errorf("%w: wasmAlloc(%d): %w", ErrAllocation, size, err)
		}
		if len(res) == 0 || uint32(res[0]) == 0 {
			return nil, fmt.Errorf("%w: wasmAlloc(%d) returned a null pointer", ErrAllocation, size)
		}

		out[i] = region{ptr: uint32(res[0]), size: size}
		a.regions = append(a.regions, out[i].ptr)
		a.stats.allocations.Add(1)
	}

	for i, r := range out {
		if r.size == 0 {
			continue
		}
		if !a.mod.memory.Write(r.ptr, []byte(values[i])) {
			return nil, fmt.Errorf("%w: writing %d bytes at %d: out of range", ErrAllocation, r.size, r.ptr)
		}
	}
	return out, nil
}

// release frees every region allocated by put.
func (a *arena) release() error {
	var err error
	for _, ptr := range a.regions {
		if _, ferr := a.mod.free.Call(a.ctx, uint64(ptr)); ferr != nil {
			err = multierr.Append(err, fmt.Errorf("wasmFree(%d): %w", ptr, ferr))
			continue
		}
		a.stats.frees.Add(1)
	}
	a.regions = nil
	return err
}
