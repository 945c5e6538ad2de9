package memory

import (
	"unsafe"

	"github.com/zeusync/ecscore/internal/core/models"
)

var _ models.Cursor = (*Iterator)(nil)

// Iterator walks the live slots of a Pool in slab order, skipping tombstones
// by following their encoded skips. Any Alloc or Free on the pool invalidates
// it; this is not detected.
type Iterator struct {
	pool *Pool
	slab int // -1 before the first slot, len(slabs) past the last
	slot uint32

	// nextTomb is the first tombstone after slot in the current slab. It is
	// only maintained while walking forward.
	nextTomb uint32
	cached   bool
}

func (it *Iterator) Reset() {
	it.slab = -1
	it.slot = 0
	it.cached = false
}

func (it *Iterator) SeekEnd() {
	it.slab = len(it.pool.slabs)
	it.slot = 0
	it.cached = false
}

func (it *Iterator) Next() bool {
	slabs := it.pool.slabs
	var idx uint32
	switch {
	case it.slab < 0:
		it.slab = 0
		it.cached = false
	case it.slab >= len(slabs):
		return false
	default:
		idx = it.slot + 1
	}

	for it.slab < len(slabs) {
		s := slabs[it.slab]
		if !it.cached {
			it.nextTomb = s.tombstoneAtOrAfter(idx)
			it.cached = true
		}
		for idx < s.size && idx == it.nextTomb {
			if skip := s.readSkip(idx); skip == lastTombstone {
				it.nextTomb = noFree
			} else {
				it.nextTomb = idx + skip
			}
			idx++
		}
		if idx < s.size {
			it.slot = idx
			return true
		}
		it.slab++
		idx = 0
		it.cached = false
	}
	return false
}

func (it *Iterator) Prev() bool {
	slabs := it.pool.slabs
	it.cached = false
	if it.slab < 0 {
		return false
	}

	fromEnd := it.slab >= len(slabs)
	if fromEnd {
		it.slab = len(slabs) - 1
	} else if it.slot == 0 {
		it.slab--
		fromEnd = true
	}
	idx := it.slot - 1

	for it.slab >= 0 {
		s := slabs[it.slab]
		if fromEnd {
			if s.size == 0 {
				it.slab--
				continue
			}
			idx = s.size - 1
		}
		if live, ok := s.liveAtOrBefore(idx); ok {
			it.slot = live
			return true
		}
		it.slab--
		fromEnd = true
	}
	it.Reset()
	return false
}

// Slot returns the address of the current slot. Only valid after Next or
// Prev returned true.
func (it *Iterator) Slot() unsafe.Pointer {
	return it.pool.slabs[it.slab].slot(it.slot)
}
