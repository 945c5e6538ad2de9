package registry

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/zeusync/ecscore/internal/core/memory"
	"github.com/zeusync/ecscore/pkg/encoding"
)

// Descriptor is the behavior table of one component type. Every hook receives
// a buffer of exactly Size bytes; the registry only moves those bytes around
// and never interprets them.
//
// Instance bytes live in slab memory that the garbage collector does not scan.
// They must never hold Go pointers, slices, strings, maps, interfaces or
// channels: anything referenced only from there can be collected while still
// in use. Keep owned resources in a side table and store a handle or index.
type Descriptor struct {
	Name    string
	Size    uintptr
	Align   uintptr
	Version uint32

	// Create constructs an instance in zeroed memory. It may acquire resources
	// but must record them as handles, never as Go pointers.
	Create func(ptr unsafe.Pointer)
	// Destroy releases whatever the instance owns. The memory is freed afterwards.
	Destroy func(ptr unsafe.Pointer)
	// Move constructs dst from src. src is treated as dead afterwards and is
	// not destroyed.
	Move func(dst, src unsafe.Pointer)
	// Copy constructs dst as a duplicate of src. Owned resources are
	// duplicated through handles as in Create.
	Copy func(dst, src unsafe.Pointer)

	Serialize   func(ptr unsafe.Pointer, ar encoding.Archive, version uint32) error
	Deserialize func(ptr unsafe.Pointer, ar encoding.Archive, version uint32) error

	// SlabCapacity overrides the registry default when non-zero.
	SlabCapacity uint32
}

// maxAlign is the alignment every slot is guaranteed to have.
const maxAlign = 8

// MaxSize is the largest instance a pool slot can hold next to its header.
const MaxSize = memory.MaxSlotSize - headerSize

func (d *Descriptor) validate() error {
	switch {
	case d.Name == "":
		return errors.Wrap(ErrInvalidDescriptor, "empty name")
	case d.Create == nil || d.Destroy == nil || d.Move == nil || d.Copy == nil:
		return errors.Wrapf(ErrInvalidDescriptor, "%s: create, destroy, move and copy are required", d.Name)
	case d.Size > MaxSize:
		return errors.Wrapf(ErrInvalidDescriptor, "%s: size %d exceeds %d", d.Name, d.Size, MaxSize)
	case d.Align > maxAlign:
		return errors.Wrapf(ErrInvalidDescriptor, "%s: alignment %d exceeds %d", d.Name, d.Align, maxAlign)
	case d.Align != 0 && d.Align&(d.Align-1) != 0:
		return errors.Wrapf(ErrInvalidDescriptor, "%s: alignment %d is not a power of two", d.Name, d.Align)
	}
	return nil
}
