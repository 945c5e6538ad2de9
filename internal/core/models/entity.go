package models

import "unsafe"

// Entity is an opaque handle into the entity table. The zero value is NullEntity.
type Entity uint32

// TypeID identifies a registered component type. Zero is never assigned.
type TypeID uint32

const (
	NullEntity  Entity = 0
	InvalidType TypeID = 0
)

func (e Entity) IsNull() bool { return e == NullEntity }

func (t TypeID) Valid() bool { return t != InvalidType }

// Attachment is a non-owning reference from an entity to one of its component
// instances. The bytes behind Ptr belong to the type's pool.
type Attachment struct {
	Type TypeID
	Ptr  unsafe.Pointer
}

// Transform is the local transform carried by every entity record.
type Transform struct {
	Translation [3]float32
	Rotation    [4]float32 // quaternion x, y, z, w
	Scale       [3]float32
}

// IdentityTransform returns a transform with no translation, no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	}
}
