//go:build linux

package lockmem

import "golang.org/x/sys/unix"

// excludeFromCoreDump advises the kernel to omit mem from any future
// core dump of this process. Linux is the only platform this package
// builds for that exposes such a flag (MADV_DONTDUMP); everywhere
// else this is a no-op.
func excludeFromCoreDump(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	return unix.Madvise(mem, unix.MADV_DONTDUMP)
}
