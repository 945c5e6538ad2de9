package memory

import "errors"

var (
	// ErrPoolExhausted is returned by Alloc when growing would exceed the slab limit.
	ErrPoolExhausted = errors.New("pool exhausted: slab limit reached")

	// Contract violations. These are raised as panic values because the
	// free list can no longer be trusted once they happen.

	ErrForeignPointer = errors.New("pointer does not belong to this pool")
	ErrDoubleFree     = errors.New("slot is already free")
	ErrInvalidSlot    = errors.New("invalid slot size")
)
