package registry

import (
	"unsafe"

	"github.com/zeusync/ecscore/internal/core/memory"
	"github.com/zeusync/ecscore/internal/core/models"
)

var _ models.DualIterator[models.Entity, unsafe.Pointer] = (*Iterator)(nil)

// Iterator yields (owner, instance) pairs for one component type. Adding or
// removing instances of that type while iterating invalidates it.
type Iterator struct {
	inner *memory.Iterator
}

func (it *Iterator) Next() bool { return it.inner.Next() }
func (it *Iterator) Prev() bool { return it.inner.Prev() }
func (it *Iterator) Reset()     { it.inner.Reset() }
func (it *Iterator) SeekEnd()   { it.inner.SeekEnd() }

// Entity is the owner of the current instance.
func (it *Iterator) Entity() models.Entity {
	return *(*models.Entity)(it.inner.Slot())
}

// Pointer is the address of the current instance.
func (it *Iterator) Pointer() unsafe.Pointer {
	return unsafe.Add(it.inner.Slot(), headerSize)
}

func (it *Iterator) Key() models.Entity { return it.Entity() }
func (it *Iterator) Item() unsafe.Pointer { return it.Pointer() }
