//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package lockmem

import "errors"

// mlockLimit reports a lockable-memory limit of 0 on platforms this
// package has no locking support for, which permanently disables the
// allocator: every Allocate returns 0 and every Deallocate returns
// false, as spec'd for the Pool-disabled error kind. This is never a
// fatal construction error.
func mlockLimit() (uintptr, error) {
	return 0, nil
}

func constructPool(uintptr) ([]byte, error) {
	return nil, errors.New("locked memory pools are not supported on this platform")
}

func destroyPool([]byte) error {
	return nil
}
