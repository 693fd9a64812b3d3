package lockmem

import "sort"

// extent is a free, contiguous byte range within the pool, given as an
// offset and length relative to the pool base. The free list kept by
// Allocator is a slice of extents sorted strictly by offset, with no
// two extents adjacent or overlapping.
type extent struct {
	offset, length uintptr
}

// padding returns the number of bytes that must be skipped at offset
// for the following byte to be aligned to align. align of 0 is treated
// as 1 (no constraint); Allocator.Allocate refuses elemSize 0 before
// reaching here.
func padding(offset, align uintptr) uintptr {
	if align <= 1 {
		return 0
	}
	mod := offset % align
	if mod == 0 {
		return 0
	}
	return align - mod
}

// findBestFit scans free once, looking for a perfect fit first and
// otherwise tracking the smallest extent that can hold n bytes plus
// whatever alignment padding it requires. Ties go to the first extent
// seen, matching the deterministic tie-break of the source allocator.
//
// Returns the index of the chosen extent and the padding it requires.
// ok is false if no extent fits.
func findBestFit(free []extent, n, align uintptr) (idx int, pad uintptr, ok bool) {
	best := -1
	var bestLen, bestPad uintptr

	for i, e := range free {
		if e.length == n && e.offset%align == 0 {
			return i, 0, true
		}
		p := padding(e.offset, align)
		if e.length < n+p {
			continue
		}
		if best == -1 || e.length < bestLen {
			best = i
			bestLen = e.length
			bestPad = p
		}
	}
	if best == -1 {
		return 0, 0, false
	}
	return best, bestPad, true
}

// allocateExtent removes n bytes, aligned to align, from free according
// to the best-fit algorithm, returning the updated free list and the
// offset of the carved-out region. On success free's backing array may
// be modified in place; callers must use the returned slice.
func allocateExtent(free []extent, n, align uintptr) (newFree []extent, offset uintptr, ok bool) {
	idx, pad, ok := findBestFit(free, n, align)
	if !ok {
		return free, 0, false
	}

	e := free[idx]
	offset = e.offset + pad
	remainder := e.length - n - pad

	switch {
	case pad == 0 && remainder == 0:
		// Perfect fit (or an exact-size candidate with no padding):
		// the whole extent is consumed.
		free = removeAt(free, idx)
	case pad == 0:
		free[idx] = extent{offset: e.offset + n, length: remainder}
	case remainder == 0:
		// The entire extent except the leading pad is used; repurpose
		// the slot in place rather than deleting and reinserting.
		free[idx] = extent{offset: e.offset, length: pad}
	default:
		free[idx] = extent{offset: offset + n, length: remainder}
		free = insertAt(free, idx, extent{offset: e.offset, length: pad})
	}

	return free, offset, true
}

// deallocateExtent inserts the freed range (start, n) into free,
// merging with an adjacent predecessor and/or successor so the
// canonical form (sorted, non-adjacent, non-overlapping) is preserved.
func deallocateExtent(free []extent, start, n uintptr) []extent {
	i := sort.Search(len(free), func(i int) bool {
		return free[i].offset >= start
	})

	mergedForward := false
	if i < len(free) && start+n == free[i].offset {
		free[i].offset = start
		free[i].length += n
		mergedForward = true
	}

	if i > 0 {
		prev := &free[i-1]
		if prev.offset+prev.length == start {
			if !mergedForward {
				prev.length += n
				return free
			}
			prev.length += free[i].length
			return removeAt(free, i)
		}
	}

	if mergedForward {
		return free
	}

	return insertAt(free, i, extent{offset: start, length: n})
}

func removeAt(free []extent, idx int) []extent {
	return append(free[:idx], free[idx+1:]...)
}

func insertAt(free []extent, idx int, e extent) []extent {
	free = append(free, extent{})
	copy(free[idx+1:], free[idx:])
	free[idx] = e
	return free
}

// totalFree returns the sum of every free extent's length, used by the
// conservation property test (P == free + live).
func totalFree(free []extent) uintptr {
	var total uintptr
	for _, e := range free {
		total += e.length
	}
	return total
}
