package memory

import (
	"math"
	"unsafe"
)

const (
	// wordSize is the alignment guaranteed for every slot.
	wordSize = 8

	// lastTombstone is written into a tombstone that has no successor.
	lastTombstone uint32 = math.MaxUint32

	// noFree marks a slab without tombstones.
	noFree uint32 = math.MaxUint32
)

// Slab is one fixed block of equally sized slots. Slots below size are either
// live or tombstones; tombstones form a chain sorted by index where each one
// stores, in its first four bytes, the distance to the next tombstone.
type Slab struct {
	words     []uint64
	base      uintptr
	slotSize  uint32
	capacity  uint32
	size      uint32
	beginFree uint32
	holes     uint32
}

func newSlab(slotSize, capacity uint32) *Slab {
	words := make([]uint64, int(slotSize/wordSize)*int(capacity))
	return &Slab{
		words:     words,
		base:      uintptr(unsafe.Pointer(&words[0])),
		slotSize:  slotSize,
		capacity:  capacity,
		beginFree: noFree,
	}
}

func (s *Slab) Capacity() uint32 { return s.capacity }

// Size is the high-water mark of slots handed out.
func (s *Slab) Size() uint32 { return s.size }

func (s *Slab) Holes() uint32 { return s.holes }

// Live is the number of slots holding instances.
func (s *Slab) Live() uint32 { return s.size - s.holes }

func (s *Slab) full() bool {
	return s.beginFree == noFree && s.size == s.capacity
}

func (s *Slab) slot(idx uint32) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(&s.words[0]), uintptr(idx)*uintptr(s.slotSize))
}

func (s *Slab) readSkip(idx uint32) uint32 {
	return *(*uint32)(s.slot(idx))
}

func (s *Slab) writeSkip(idx, skip uint32) {
	*(*uint32)(s.slot(idx)) = skip
}

func (s *Slab) zero(idx uint32) {
	clear(unsafe.Slice((*byte)(s.slot(idx)), s.slotSize))
}

// index maps an address inside the slab to its slot.
func (s *Slab) index(ptr unsafe.Pointer) (uint32, bool) {
	addr := uintptr(ptr)
	if addr < s.base {
		return 0, false
	}
	off := addr - s.base
	if off >= uintptr(s.capacity)*uintptr(s.slotSize) || off%uintptr(s.slotSize) != 0 {
		return 0, false
	}
	return uint32(off / uintptr(s.slotSize)), true
}

// alloc pops the first tombstone, or bumps size when there is none.
func (s *Slab) alloc() (uint32, bool) {
	if s.beginFree != noFree {
		idx := s.beginFree
		if skip := s.readSkip(idx); skip == lastTombstone {
			s.beginFree = noFree
		} else {
			s.beginFree = idx + skip
		}
		s.holes--
		s.zero(idx)
		return idx, true
	}
	if s.size < s.capacity {
		idx := s.size
		s.size++
		s.zero(idx)
		return idx, true
	}
	return 0, false
}

// free turns a live slot into a tombstone. The chain is kept sorted, so the
// insertion point is found by walking it from beginFree.
func (s *Slab) free(idx uint32) {
	if idx >= s.size {
		panic(ErrDoubleFree)
	}
	if idx == s.size-1 {
		s.size--
		s.trimTail()
		return
	}

	switch {
	case s.beginFree == noFree:
		s.writeSkip(idx, lastTombstone)
		s.beginFree = idx
	case idx < s.beginFree:
		s.writeSkip(idx, s.beginFree-idx)
		s.beginFree = idx
	case idx == s.beginFree:
		panic(ErrDoubleFree)
	default:
		cur := s.beginFree
		for {
			skip := s.readSkip(cur)
			if skip == lastTombstone {
				s.writeSkip(idx, lastTombstone)
				break
			}
			next := cur + skip
			if next == idx {
				panic(ErrDoubleFree)
			}
			if next > idx {
				s.writeSkip(idx, next-idx)
				break
			}
			cur = next
		}
		s.writeSkip(cur, idx-cur)
	}
	s.holes++
}

// trimTail drops the run of tombstones that ends right below size, so that
// every tombstone stays inside the used range.
func (s *Slab) trimTail() {
	if s.beginFree == noFree || s.size == 0 {
		return
	}

	before := noFree
	runStart := s.beginFree
	last := s.beginFree
	for {
		skip := s.readSkip(last)
		if skip == lastTombstone {
			break
		}
		if skip != 1 {
			before = last
			runStart = last + skip
		}
		last += skip
	}
	if last != s.size-1 {
		return
	}

	s.holes -= last - runStart + 1
	s.size = runStart
	if before == noFree {
		s.beginFree = noFree
	} else {
		s.writeSkip(before, lastTombstone)
	}
}

// tombstoneAtOrAfter returns the first tombstone with index >= idx, or noFree.
func (s *Slab) tombstoneAtOrAfter(idx uint32) uint32 {
	cur := s.beginFree
	for cur != noFree && cur < idx {
		skip := s.readSkip(cur)
		if skip == lastTombstone {
			return noFree
		}
		cur += skip
	}
	return cur
}

// liveAtOrBefore returns the closest live slot with index <= idx.
func (s *Slab) liveAtOrBefore(idx uint32) (uint32, bool) {
	if s.size == 0 {
		return 0, false
	}
	if idx >= s.size {
		idx = s.size - 1
	}

	cur := s.beginFree
	runStart := cur
	for cur != noFree && cur <= idx {
		if cur == idx {
			if runStart == 0 {
				return 0, false
			}
			return runStart - 1, true
		}
		skip := s.readSkip(cur)
		if skip == lastTombstone {
			break
		}
		if skip != 1 {
			runStart = cur + skip
		}
		cur += skip
	}
	return idx, true
}
