//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package lockmem

import (
	"fmt"
	"log"

	"golang.org/x/sys/unix"
)

// mlockLimit queries the OS's lockable-memory limit, raising the soft
// limit to the hard limit first if the OS allows it (best-effort: a
// failed Setrlimit is not fatal, since the subsequent Getrlimit still
// reports whatever the true soft limit ended up being).
func mlockLimit() (uintptr, error) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &lim); err != nil {
		return 0, fmt.Errorf("getrlimit(RLIMIT_MEMLOCK): %w", err)
	}

	if lim.Cur < lim.Max {
		raised := lim
		raised.Cur = raised.Max
		_ = unix.Setrlimit(unix.RLIMIT_MEMLOCK, &raised)
		_ = unix.Getrlimit(unix.RLIMIT_MEMLOCK, &lim)
	}

	return uintptr(lim.Cur), nil
}

// constructPool maps size bytes of private, anonymous, read/write
// memory, asks the OS to exclude it from core dumps where that is
// possible, zeroes it, and locks it in physical memory. On a mapping or
// locking failure, the mapping is torn down before the error is
// returned so no partially-constructed pool is left mapped; those are
// the only failures fatal to construction.
//
// Excluding the pool from core dumps is a best-effort hint, not a
// construction requirement: MADV_DONTDUMP does not exist on every
// platform this package builds for, and even on Linux a kernel can
// refuse it. A failure here is logged and otherwise ignored, the same
// way the allocator this package is modeled on treats MAP_NOCORE as
// absent rather than required when the platform lacks it.
//
// The original allocator this package is modeled on maps the pool
// shared-anonymous (MAP_SHARED); nothing here needs cross-process
// sharing (it is an explicit non-goal), so this implementation maps
// private-anonymous instead, per the conservative recommendation
// attached to that design decision.
func constructPool(size uintptr) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	if err := excludeFromCoreDump(mem); err != nil {
		log.Printf("lockmem: could not exclude locked pool from core dumps: %v", err)
	}

	zeroBytes(mem)

	if err := unix.Mlock(mem); err != nil {
		_ = unix.Munmap(mem)
		return nil, fmt.Errorf("mlock: %w", err)
	}

	return mem, nil
}

// destroyPool zeroes, unlocks, and unmaps a pool built by constructPool.
func destroyPool(mem []byte) error {
	zeroBytes(mem)
	if err := unix.Munlock(mem); err != nil {
		return fmt.Errorf("munlock: %w", err)
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
