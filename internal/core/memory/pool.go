package memory

import (
	"unsafe"

	"github.com/pkg/errors"
)

const DefaultSlabCapacity = 64

// MaxSlotSize is the largest slot a pool accepts.
const MaxSlotSize = 1 << 20

// Pool is an ordered list of slabs sharing one slot size. Slabs are only ever
// appended, so an address handed out by Alloc stays valid until it is freed.
//
// A Pool is not safe for concurrent use.
type Pool struct {
	slabs        []*Slab
	slotSize     uint32
	slabCapacity uint32
	maxSlabs     int
	live         int
	holes        int
	onGrow       func(slabs int)
}

type Option func(*Pool)

// WithSlabCapacity sets the number of slots in every new slab.
func WithSlabCapacity(n uint32) Option {
	return func(p *Pool) {
		if n > 0 {
			p.slabCapacity = n
		}
	}
}

// WithMaxSlabs caps the number of slabs; zero means unlimited.
func WithMaxSlabs(n int) Option {
	return func(p *Pool) {
		p.maxSlabs = n
	}
}

// WithGrowHook registers a callback fired after a slab is appended.
func WithGrowHook(fn func(slabs int)) Option {
	return func(p *Pool) {
		p.onGrow = fn
	}
}

// SlotSize rounds size up to the slot granularity used by pools.
func SlotSize(size uintptr) uint32 {
	if size < wordSize {
		return wordSize
	}
	return uint32((size + wordSize - 1) &^ (wordSize - 1))
}

// NewPool creates an empty pool. No memory is reserved until the first Alloc.
func NewPool(slotSize uintptr, opts ...Option) *Pool {
	if slotSize == 0 || slotSize > MaxSlotSize {
		panic(errors.Wrapf(ErrInvalidSlot, "%d", slotSize))
	}
	p := &Pool{
		slotSize:     SlotSize(slotSize),
		slabCapacity: DefaultSlabCapacity,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Alloc returns zeroed storage for one instance. Tombstones are reused before
// any slab is bumped, and a new slab is appended only when every existing one
// is full.
func (p *Pool) Alloc() (unsafe.Pointer, error) {
	if p.holes > 0 {
		for _, s := range p.slabs {
			if s.beginFree == noFree {
				continue
			}
			idx, _ := s.alloc()
			p.holes--
			p.live++
			return s.slot(idx), nil
		}
	}

	if n := len(p.slabs); n > 0 {
		if idx, ok := p.slabs[n-1].alloc(); ok {
			p.live++
			return p.slabs[n-1].slot(idx), nil
		}
		for _, s := range p.slabs[:n-1] {
			if idx, ok := s.alloc(); ok {
				p.live++
				return s.slot(idx), nil
			}
		}
	}

	if p.maxSlabs > 0 && len(p.slabs) >= p.maxSlabs {
		return nil, ErrPoolExhausted
	}
	s := newSlab(p.slotSize, p.slabCapacity)
	p.slabs = append(p.slabs, s)
	if p.onGrow != nil {
		p.onGrow(len(p.slabs))
	}

	idx, _ := s.alloc()
	p.live++
	return s.slot(idx), nil
}

// Free releases a slot. The instance must already be destroyed. Freeing a
// pointer the pool does not own, or freeing twice, panics.
func (p *Pool) Free(ptr unsafe.Pointer) {
	n, idx, ok := p.Locate(ptr)
	if !ok {
		panic(ErrForeignPointer)
	}
	s := p.slabs[n]
	before := s.holes
	s.free(idx)
	p.holes += int(s.holes) - int(before)
	p.live--
}

// Locate returns the slab number and slot index of ptr.
func (p *Pool) Locate(ptr unsafe.Pointer) (int, uint32, bool) {
	for n, s := range p.slabs {
		if idx, ok := s.index(ptr); ok {
			return n, idx, true
		}
	}
	return 0, 0, false
}

// Contains reports whether ptr is a slot address inside the pool, live or not.
func (p *Pool) Contains(ptr unsafe.Pointer) bool {
	_, _, ok := p.Locate(ptr)
	return ok
}

// Before reports whether slot a precedes slot b in iteration order.
func (p *Pool) Before(a, b unsafe.Pointer) bool {
	na, ia, _ := p.Locate(a)
	nb, ib, _ := p.Locate(b)
	if na != nb {
		return na < nb
	}
	return ia < ib
}

// Iter returns a cursor positioned before the first live slot.
func (p *Pool) Iter() *Iterator {
	it := &Iterator{pool: p}
	it.Reset()
	return it
}

func (p *Pool) Len() int       { return p.live }
func (p *Pool) Holes() int     { return p.holes }
func (p *Pool) SlabCount() int { return len(p.slabs) }

func (p *Pool) SlotSize() uint32 { return p.slotSize }

func (p *Pool) SlabCapacity() uint32 { return p.slabCapacity }

// Slab exposes slab n for inspection.
func (p *Pool) Slab(n int) *Slab { return p.slabs[n] }

type Stats struct {
	Slabs    int
	Live     int
	Holes    int
	Capacity int
	SlotSize uint32
	Bytes    int
}

func (p *Pool) Stats() Stats {
	capacity := len(p.slabs) * int(p.slabCapacity)
	return Stats{
		Slabs:    len(p.slabs),
		Live:     p.live,
		Holes:    p.holes,
		Capacity: capacity,
		SlotSize: p.slotSize,
		Bytes:    capacity * int(p.slotSize),
	}
}
