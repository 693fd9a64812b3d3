//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package lockmem

// excludeFromCoreDump is a no-op on these platforms: none of them
// expose a madvise-style flag for excluding an anonymous mapping from
// a core dump through golang.org/x/sys/unix, so this package treats
// the hint as absent, per spec.
func excludeFromCoreDump([]byte) error {
	return nil
}
