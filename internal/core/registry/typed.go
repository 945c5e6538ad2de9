package registry

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/zeusync/ecscore/internal/core/models"
	"github.com/zeusync/ecscore/pkg/encoding"
)

type typeConfig[T any] struct {
	init        func(*T)
	finalize    func(*T)
	copy        func(dst, src *T)
	serialize   func(*T, encoding.Archive, uint32) error
	deserialize func(*T, encoding.Archive, uint32) error
	version     uint32
	capacity    uint32
}

type TypeOption[T any] func(*typeConfig[T])

// WithInit runs after the instance is zeroed.
func WithInit[T any](fn func(*T)) TypeOption[T] {
	return func(c *typeConfig[T]) { c.init = fn }
}

// WithFinalize runs before the instance's memory is released.
func WithFinalize[T any](fn func(*T)) TypeOption[T] {
	return func(c *typeConfig[T]) { c.finalize = fn }
}

// WithCopy replaces the default bitwise copy used by duplication.
func WithCopy[T any](fn func(dst, src *T)) TypeOption[T] {
	return func(c *typeConfig[T]) { c.copy = fn }
}

// WithSerializer replaces the default raw-bytes encoding.
func WithSerializer[T any](
	serialize func(*T, encoding.Archive, uint32) error,
	deserialize func(*T, encoding.Archive, uint32) error,
) TypeOption[T] {
	return func(c *typeConfig[T]) {
		c.serialize = serialize
		c.deserialize = deserialize
	}
}

func WithVersion[T any](v uint32) TypeOption[T] {
	return func(c *typeConfig[T]) { c.version = v }
}

func WithCapacity[T any](n uint32) TypeOption[T] {
	return func(c *typeConfig[T]) { c.capacity = n }
}

// Register derives a descriptor from T and registers it under name. T must be
// plain data: slab memory is not scanned by the garbage collector, so types
// holding pointers, slices, strings, maps, interfaces, channels or funcs are
// rejected.
func Register[T any](r *Registry, name string, opts ...TypeOption[T]) (models.TypeID, error) {
	typ := reflect.TypeFor[T]()
	if hasPointers(typ) {
		return models.InvalidType, errors.Wrapf(ErrPointerType, "%s (%s)", name, typ)
	}

	cfg := typeConfig[T]{version: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	size := unsafe.Sizeof(*new(T))
	desc := Descriptor{
		Name:         name,
		Size:         size,
		Align:        uintptr(typ.Align()),
		Version:      cfg.version,
		SlabCapacity: cfg.capacity,
		Create: func(ptr unsafe.Pointer) {
			if cfg.init != nil {
				cfg.init((*T)(ptr))
			}
		},
		Destroy: func(ptr unsafe.Pointer) {
			if cfg.finalize != nil {
				cfg.finalize((*T)(ptr))
			}
			*(*T)(ptr) = *new(T)
		},
		Move: func(dst, src unsafe.Pointer) {
			*(*T)(dst) = *(*T)(src)
		},
		Copy: func(dst, src unsafe.Pointer) {
			if cfg.copy != nil {
				cfg.copy((*T)(dst), (*T)(src))
				return
			}
			*(*T)(dst) = *(*T)(src)
		},
		Serialize: func(ptr unsafe.Pointer, ar encoding.Archive, version uint32) error {
			if cfg.serialize != nil {
				return cfg.serialize((*T)(ptr), ar, version)
			}
			return encoding.WriteRaw(ar, unsafe.Slice((*byte)(ptr), size))
		},
		Deserialize: func(ptr unsafe.Pointer, ar encoding.Archive, version uint32) error {
			if cfg.deserialize != nil {
				return cfg.deserialize((*T)(ptr), ar, version)
			}
			return encoding.ReadRaw(ar, unsafe.Slice((*byte)(ptr), size))
		},
	}
	return r.Register(desc)
}

// As views a component pointer as *T. The caller must know the type.
func As[T any](ptr unsafe.Pointer) *T {
	return (*T)(ptr)
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Slice, reflect.String,
		reflect.Map, reflect.Interface, reflect.Chan, reflect.Func:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
