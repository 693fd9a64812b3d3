package lockmem

import (
	"fmt"
	"log"
	"sync"
)

// mlockUpperBound caps the pool at 512 KiB regardless of how generous
// the OS's lockable-memory limit is. This keeps many independent
// processes on one machine from exhausting the machine's locked-memory
// budget; it is sized to cover this library's own test suite.
const mlockUpperBound = 512 * 1024

// Allocator is a best-fit, boundary-merging allocator over a single
// page-locked memory pool. The zero value is a permanently disabled
// allocator; obtain a working one via Instance.
type Allocator struct {
	mu   sync.Mutex
	base []byte // nil if disabled
	free []extent
}

var (
	singleton     *Allocator
	singletonOnce sync.Once
)

// Instance returns the process-wide Allocator, constructing it (and
// its backing pool) on first call. Construction failure — a mapping
// or locking syscall that fails, as opposed to a lockable-memory limit
// of zero, which merely disables the pool — panics, since there is no
// way to run the locked allocator at all in that case.
func Instance() *Allocator {
	singletonOnce.Do(func() {
		singleton = newAllocator()
	})
	return singleton
}

// Close tears down the process-wide pool: zeroes it, unlocks it, and
// unmaps it. It is idempotent, safe to call against an already-disabled
// pool, and intended for deterministic teardown at process shutdown or
// in tests — Go does not run destructors at process exit the way the
// allocator this package is modeled on does.
//
// Close does not reset the singleton: once closed, the same *Allocator
// behaves as a disabled one (Allocate returns 0, Deallocate returns
// false), since the pool is gone. A process that closes the singleton
// is expected to be shutting down.
//
// The mutex is released before the teardown syscalls are made.
func (a *Allocator) Close() error {
	a.mu.Lock()
	base := a.base
	a.base = nil
	a.free = nil
	a.mu.Unlock()
	if base == nil {
		return nil
	}
	return destroyPool(base)
}

// Stats is a point-in-time snapshot of pool occupancy, meant for
// monitoring, not for making allocation decisions (it is stale the
// instant the mutex is released).
type Stats struct {
	PoolBytes   uintptr // 0 if the pool is disabled
	FreeBytes   uintptr
	FreeExtents int
	Disabled    bool
}

// Stats reports a snapshot of the allocator's current occupancy.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.base == nil {
		return Stats{Disabled: true}
	}
	return Stats{
		PoolBytes:   uintptr(len(a.base)),
		FreeBytes:   totalFree(a.free),
		FreeExtents: len(a.free),
	}
}

func newAllocator() *Allocator {
	limit, err := mlockLimit()
	if err != nil {
		log.Printf("lockmem: could not query lockable-memory limit: %v", err)
		return &Allocator{}
	}
	if limit == 0 {
		log.Printf("lockmem: lockable-memory limit is 0, locked allocator disabled")
		return &Allocator{}
	}

	size := limit
	if size > mlockUpperBound {
		size = mlockUpperBound
	}

	base, err := constructPool(size)
	if err != nil {
		panic(fmt.Sprintf("lockmem: failed to construct locked pool: %v", err))
	}

	return &Allocator{
		base: base,
		free: []extent{{offset: 0, length: uintptr(len(base))}},
	}
}

// Allocate returns the address of a numElems*elemSize byte region
// aligned to elemSize, or 0 if the pool is disabled, the request
// overflows, the request is as large as or larger than the whole pool,
// or no free extent can satisfy it. The returned region is zeroed.
func (a *Allocator) Allocate(numElems, elemSize uintptr) uintptr {
	if elemSize == 0 {
		return 0
	}

	n, overflow := mulOverflows(numElems, elemSize)
	if overflow {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.base == nil {
		return 0
	}
	poolSize := uintptr(len(a.base))
	if n >= poolSize {
		return 0
	}

	free, offset, ok := allocateExtent(a.free, n, elemSize)
	if !ok {
		return 0
	}
	a.free = free

	region := a.base[offset : offset+n]
	zeroBytes(region)

	return a.address(offset)
}

// Deallocate returns a region obtained from Allocate to the free list.
// It reports whether address was a pointer into this allocator's pool;
// addresses it does not recognize are left completely untouched so a
// caller can route them to a different allocator.
//
// Deallocate does not zero the returned bytes: callers own the
// contents until the moment they call Deallocate and are expected to
// scrub sensitive data themselves beforehand.
func (a *Allocator) Deallocate(address, numElems, elemSize uintptr) bool {
	n, overflow := mulOverflows(numElems, elemSize)
	if overflow {
		// Allocate would have refused a request that overflows, so a
		// genuine caller can never reach this with a real allocation.
		panic("lockmem: deallocate size overflows")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.base == nil {
		return false
	}
	if !a.contains(address, n) {
		return false
	}

	start := address - a.address(0)
	a.free = deallocateExtent(a.free, start, n)
	return true
}

// contains reports whether [address, address+n) lies entirely within
// the pool. It must be called with a.mu held and a.base != nil.
func (a *Allocator) contains(address, n uintptr) bool {
	base := a.address(0)
	end := base + uintptr(len(a.base))
	if address < base || address >= end {
		return false
	}
	if address+n > end {
		// Partial overlap with the pool boundary: this can only
		// happen for a corrupted or forged address, since every
		// address Allocate ever returned satisfies address+n <= end.
		panic("lockmem: address partially overlaps pool bounds")
	}
	return true
}

func (a *Allocator) address(offset uintptr) uintptr {
	return sliceAddress(a.base) + offset
}

// mulOverflows computes a*b and reports whether the multiplication
// overflowed a uintptr.
func mulOverflows(a, b uintptr) (product uintptr, overflow bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	product = a * b
	return product, product/b != a
}
