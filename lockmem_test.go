package lockmem

import (
	"math/rand"
	"testing"
	"unsafe"
)

const testPoolSize = 1024

// liveAllocation records one outstanding Allocate call, for the
// property test below and its invariant checkers.
type liveAllocation struct {
	addr, numElems, elemSize uintptr
}

func TestAllocateZeroesHandout(t *testing.T) {
	a := newAllocatorForTesting(testPoolSize)
	defer a.Close()

	addr := a.Allocate(64, 4)
	if addr == 0 {
		t.Fatal("allocation failed")
	}
	b := bytesAt(a, addr, 64*4)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zero: %v", i, v)
		}
		b[i] = 0xAA
	}
	if !a.Deallocate(addr, 64, 4) {
		t.Fatal("deallocate failed")
	}

	addr2 := a.Allocate(64, 4)
	if addr2 != addr {
		t.Fatalf("expected reused address %v, got %v", addr, addr2)
	}
	b2 := bytesAt(a, addr2, 64*4)
	for i, v := range b2 {
		if v != 0 {
			t.Fatalf("reused region not zeroed at %d: %v", i, v)
		}
	}
}

func TestAlignment(t *testing.T) {
	a := newAllocatorForTesting(testPoolSize)
	defer a.Close()

	// Force a misaligned starting extent so alignment padding is
	// exercised, mirroring the alignment-padding scenario.
	a.Allocate(1, 1)

	addr := a.Allocate(8, 8)
	if addr == 0 {
		t.Fatal("allocation failed")
	}
	if addr%8 != 0 {
		t.Fatalf("address %v not aligned to 8", addr)
	}
}

func TestOversizedRefusal(t *testing.T) {
	a := newAllocatorForTesting(testPoolSize)
	defer a.Close()

	if addr := a.Allocate(testPoolSize, 1); addr != 0 {
		t.Fatalf("expected refusal for n == P, got %v", addr)
	}
	if addr := a.Allocate(testPoolSize+1, 1); addr != 0 {
		t.Fatalf("expected refusal for n > P, got %v", addr)
	}
	// One byte under the pool size must still succeed.
	if addr := a.Allocate(testPoolSize-1, 1); addr == 0 {
		t.Fatal("expected success for n == P - 1")
	}
}

func TestOverflowRefusal(t *testing.T) {
	a := newAllocatorForTesting(testPoolSize)
	defer a.Close()

	before := a.freeListForTesting()

	var maxUintptr uintptr = ^uintptr(0)
	if addr := a.Allocate(maxUintptr, 2); addr != 0 {
		t.Fatalf("expected refusal on overflow, got %v", addr)
	}

	after := a.freeListForTesting()
	if len(before) != len(after) || before[0] != after[0] {
		t.Errorf("free list mutated by a refused allocation: %v -> %v", before, after)
	}
}

func TestDisabledPool(t *testing.T) {
	a := disabledAllocatorForTesting()
	if addr := a.Allocate(4, 4); addr != 0 {
		t.Fatalf("expected 0 from a disabled pool, got %v", addr)
	}
	if a.Deallocate(1, 4, 4) {
		t.Fatal("expected false from a disabled pool")
	}
}

func TestDeallocateForeignPointer(t *testing.T) {
	a := newAllocatorForTesting(testPoolSize)
	defer a.Close()

	before := a.freeListForTesting()

	base := a.baseAddressForTesting()
	if a.Deallocate(base-8, 4, 1) {
		t.Fatal("expected rejection of an address before the pool")
	}
	if a.Deallocate(base+testPoolSize, 4, 1) {
		t.Fatal("expected rejection of an address after the pool")
	}

	after := a.freeListForTesting()
	if len(before) != len(after) || before[0] != after[0] {
		t.Errorf("free list mutated by a rejected deallocation: %v -> %v", before, after)
	}
}

func TestRoundTripRestoresFreeList(t *testing.T) {
	a := newAllocatorForTesting(testPoolSize)
	defer a.Close()

	before := a.freeListForTesting()
	addr := a.Allocate(100, 1)
	if addr == 0 {
		t.Fatal("allocation failed")
	}
	if !a.Deallocate(addr, 100, 1) {
		t.Fatal("deallocate failed")
	}
	after := a.freeListForTesting()

	if len(before) != len(after) {
		t.Fatalf("free list shape changed: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("free list changed: %v -> %v", before, after)
		}
	}
}

// TestRandomAllocateDeallocateSequence is a property-style test: it
// drives a long random sequence of allocate/deallocate calls and
// checks, after every step, the disjointness, containment, alignment,
// canonical-form and conservation invariants from the spec.
func TestRandomAllocateDeallocateSequence(t *testing.T) {
	const poolSize = 4096
	a := newAllocatorForTesting(poolSize)
	defer a.Close()

	rng := rand.New(rand.NewSource(1))

	var outstanding []liveAllocation

	for i := 0; i < 5000; i++ {
		if len(outstanding) > 0 && (rng.Intn(2) == 0 || len(outstanding) > 32) {
			idx := rng.Intn(len(outstanding))
			l := outstanding[idx]
			if !a.Deallocate(l.addr, l.numElems, l.elemSize) {
				t.Fatalf("deallocate of a live allocation failed: %+v", l)
			}
			outstanding = append(outstanding[:idx], outstanding[idx+1:]...)
		} else {
			elemSize := uintptr(1 << uint(rng.Intn(7))) // 1..64
			numElems := uintptr(rng.Intn(40) + 1)
			addr := a.Allocate(numElems, elemSize)
			if addr == 0 {
				continue
			}
			if addr%elemSize != 0 {
				t.Fatalf("address %v not aligned to %v", addr, elemSize)
			}
			base := a.baseAddressForTesting()
			if addr < base || addr+numElems*elemSize > base+poolSize {
				t.Fatalf("address %v size %v escapes pool [%v, %v)",
					addr, numElems*elemSize, base, base+poolSize)
			}
			outstanding = append(outstanding, liveAllocation{addr, numElems, elemSize})
		}

		checkCanonicalForm(t, a.freeListForTesting())
		checkConservation(t, a.freeListForTesting(), outstanding, poolSize)
		checkDisjoint(t, outstanding)
	}
}

func checkCanonicalForm(t *testing.T, free []extent) {
	t.Helper()
	for i := 1; i < len(free); i++ {
		if free[i-1].offset >= free[i].offset {
			t.Fatalf("free list not sorted: %v", free)
		}
		if free[i-1].offset+free[i-1].length >= free[i].offset {
			t.Fatalf("adjacent or overlapping extents not merged: %v", free)
		}
	}
	for _, e := range free {
		if e.length == 0 {
			t.Fatalf("zero-length extent in free list: %v", free)
		}
	}
}

func checkConservation(t *testing.T, free []extent, outstanding []liveAllocation, poolSize uintptr) {
	t.Helper()
	var live uintptr
	for _, l := range outstanding {
		live += l.numElems * l.elemSize
	}
	if got := totalFree(free) + live; got != poolSize {
		t.Fatalf("conservation violated: free(%v) + live(%v) = %v, want %v",
			totalFree(free), live, got, poolSize)
	}
}

func checkDisjoint(t *testing.T, outstanding []liveAllocation) {
	t.Helper()
	for i := range outstanding {
		for j := range outstanding {
			if i == j {
				continue
			}
			a, b := outstanding[i], outstanding[j]
			aEnd := a.addr + a.numElems*a.elemSize
			bEnd := b.addr + b.numElems*b.elemSize
			if a.addr < bEnd && b.addr < aEnd {
				t.Fatalf("overlapping allocations: %+v and %+v", a, b)
			}
		}
	}
}

func bytesAt(a *Allocator, addr uintptr, n uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(n))
}
