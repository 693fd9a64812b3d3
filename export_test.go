package lockmem

// newAllocatorForTesting builds a standalone Allocator backed by a
// pool of exactly size bytes, bypassing the OS rlimit query and the
// process singleton, per spec's test hook: "reduce MLOCK_UPPER_BOUND
// via a test hook or inject P."
func newAllocatorForTesting(size int) *Allocator {
	base, err := constructPool(uintptr(size))
	if err != nil {
		panic(err)
	}
	return &Allocator{
		base: base,
		free: []extent{{offset: 0, length: uintptr(len(base))}},
	}
}

// disabledAllocatorForTesting returns an Allocator whose pool is
// permanently disabled, for exercising the Pool-disabled error kind
// without depending on the host's actual rlimit.
func disabledAllocatorForTesting() *Allocator {
	return &Allocator{}
}

func (a *Allocator) freeListForTesting() []extent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]extent, len(a.free))
	copy(out, a.free)
	return out
}

func (a *Allocator) baseAddressForTesting() uintptr {
	return a.address(0)
}
