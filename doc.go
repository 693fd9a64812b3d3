// Package lockmem implements a process-wide locked-memory allocator for
// small, aligned byte regions carved from a single page-locked pool.
//
// The pool is mapped once, sized from the OS's lockable-memory limit
// (capped at 512 KiB), pinned so it is never paged to swap or written
// to a core dump, and zeroed both before being handed out and (by the
// caller, not this package) before being returned. Allocations are
// served by a best-fit free-list allocator with alignment equal to the
// requested element size and boundary-merging on free.
//
// This is meant for small amounts of cryptographically sensitive
// material — keys, nonces, intermediate state — not as a general
// purpose heap. Requesting more than the pool holds, or requesting
// exactly the whole pool, always fails closed by returning the zero
// address rather than panicking: callers are expected to fall back to
// an ordinary allocator when that happens.
package lockmem
