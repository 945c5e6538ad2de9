package registry

import (
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/zeusync/ecscore/internal/core/memory"
	"github.com/zeusync/ecscore/internal/core/models"
	"github.com/zeusync/ecscore/internal/core/observability/log"
	"github.com/zeusync/ecscore/pkg/encoding"
)

// headerSize precedes every instance inside its slot and stores the owning
// entity. While the slot is a tombstone the header holds the skip instead.
const headerSize = 8

type entry struct {
	id   models.TypeID
	desc Descriptor
	pool *memory.Pool
}

func (e *entry) instance(slot unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(slot, headerSize)
}

func (e *entry) slot(ptr unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(ptr, -headerSize)
}

// Registry owns one pool per registered component type and dispatches
// lifecycle calls through each type's descriptor.
//
// A Registry is not safe for concurrent use.
type Registry struct {
	types      []*entry
	byName     map[uint64][]models.TypeID
	logger     log.Log
	capacity   uint32
	maxSlabs   int
	capacities map[string]uint32
}

type Option func(*Registry)

func WithLogger(l log.Log) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSlabCapacity sets the default number of instances per slab.
func WithSlabCapacity(n uint32) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithMaxSlabs caps every pool at n slabs; zero means unlimited.
func WithMaxSlabs(n int) Option {
	return func(r *Registry) {
		r.maxSlabs = n
	}
}

// WithTypeCapacity overrides the slab capacity for the type registered under name.
func WithTypeCapacity(name string, n uint32) Option {
	return func(r *Registry) {
		r.capacities[name] = n
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		byName:     make(map[uint64][]models.TypeID),
		logger:     log.NewNop(),
		capacity:   memory.DefaultSlabCapacity,
		capacities: make(map[string]uint32),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores desc and creates the pool for its instances. Names are unique.
func (r *Registry) Register(desc Descriptor) (models.TypeID, error) {
	if err := desc.validate(); err != nil {
		return models.InvalidType, err
	}
	if _, ok := r.Lookup(desc.Name); ok {
		return models.InvalidType, errors.Wrap(ErrAlreadyRegistered, desc.Name)
	}

	capacity := r.capacity
	if n := r.capacities[desc.Name]; n > 0 {
		capacity = n
	} else if desc.SlabCapacity > 0 {
		capacity = desc.SlabCapacity
	}

	id := models.TypeID(len(r.types) + 1)
	logger := r.logger.With(log.String("type", desc.Name))
	pool := memory.NewPool(headerSize+desc.Size,
		memory.WithSlabCapacity(capacity),
		memory.WithMaxSlabs(r.maxSlabs),
		memory.WithGrowHook(func(slabs int) {
			logger.Debug("slab appended", log.Int("slabs", slabs))
		}),
	)
	r.types = append(r.types, &entry{id: id, desc: desc, pool: pool})

	hash := xxhash.Sum64String(desc.Name)
	r.byName[hash] = append(r.byName[hash], id)

	logger.Debug("component type registered",
		log.Uint32("id", uint32(id)),
		log.Uint64("size", uint64(desc.Size)),
		log.Uint32("slot", pool.SlotSize()),
		log.Uint32("slab_capacity", capacity),
	)
	return id, nil
}

// Lookup resolves a registered name.
func (r *Registry) Lookup(name string) (models.TypeID, bool) {
	for _, id := range r.byName[xxhash.Sum64String(name)] {
		if r.types[id-1].desc.Name == name {
			return id, true
		}
	}
	return models.InvalidType, false
}

func (r *Registry) entry(id models.TypeID) (*entry, error) {
	if id == models.InvalidType || int(id) > len(r.types) {
		return nil, errors.Wrapf(ErrUnknownType, "type %d", id)
	}
	return r.types[id-1], nil
}

func (r *Registry) Descriptor(id models.TypeID) (Descriptor, error) {
	e, err := r.entry(id)
	if err != nil {
		return Descriptor{}, err
	}
	return e.desc, nil
}

// Name returns the registered name of id, or an empty string.
func (r *Registry) Name(id models.TypeID) string {
	if e, err := r.entry(id); err == nil {
		return e.desc.Name
	}
	return ""
}

// Types lists registered ids in registration order.
func (r *Registry) Types() []models.TypeID {
	ids := make([]models.TypeID, len(r.types))
	for i, e := range r.types {
		ids[i] = e.id
	}
	return ids
}

// Alloc vends storage from the type's pool, stamps the owner and runs Create.
func (r *Registry) Alloc(id models.TypeID, owner models.Entity) (unsafe.Pointer, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	slot, err := e.pool.Alloc()
	if err != nil {
		return nil, errors.Wrapf(err, "alloc %s", e.desc.Name)
	}
	*(*models.Entity)(slot) = owner
	ptr := e.instance(slot)
	e.desc.Create(ptr)
	return ptr, nil
}

// Release runs Destroy and returns the slot to the pool.
func (r *Registry) Release(id models.TypeID, ptr unsafe.Pointer) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	e.desc.Destroy(ptr)
	e.pool.Free(e.slot(ptr))
	return nil
}

// Clone allocates a new instance for owner and runs Copy from src.
func (r *Registry) Clone(id models.TypeID, owner models.Entity, src unsafe.Pointer) (unsafe.Pointer, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	slot, err := e.pool.Alloc()
	if err != nil {
		return nil, errors.Wrapf(err, "clone %s", e.desc.Name)
	}
	*(*models.Entity)(slot) = owner
	dst := e.instance(slot)
	e.desc.Copy(dst, src)
	return dst, nil
}

// Owner reads the entity stamped in front of a live instance.
func Owner(ptr unsafe.Pointer) models.Entity {
	return *(*models.Entity)(unsafe.Add(ptr, -headerSize))
}

// Count is the number of live instances of id.
func (r *Registry) Count(id models.TypeID) int {
	e, err := r.entry(id)
	if err != nil {
		return 0
	}
	return e.pool.Len()
}

func (r *Registry) Stats(id models.TypeID) (memory.Stats, error) {
	e, err := r.entry(id)
	if err != nil {
		return memory.Stats{}, err
	}
	return e.pool.Stats(), nil
}

// Iter returns a cursor over every live instance of id.
func (r *Registry) Iter(id models.TypeID) (*Iterator, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	return &Iterator{inner: e.pool.Iter()}, nil
}

// Compact relocates instances from the end of the pool into its holes using
// the type's Move hook until no hole is left. Moved instances get new
// addresses; repoint is called for each so the owner's reference can follow.
func (r *Registry) Compact(id models.TypeID, repoint func(owner models.Entity, from, to unsafe.Pointer)) (int, error) {
	e, err := r.entry(id)
	if err != nil {
		return 0, err
	}

	moved := 0
	for e.pool.Holes() > 0 {
		it := e.pool.Iter()
		it.SeekEnd()
		if !it.Prev() {
			break
		}
		srcSlot := it.Slot()

		dstSlot, err := e.pool.Alloc()
		if err != nil {
			return moved, errors.Wrapf(err, "compact %s", e.desc.Name)
		}
		if !e.pool.Before(dstSlot, srcSlot) {
			e.pool.Free(dstSlot)
			break
		}

		owner := *(*models.Entity)(srcSlot)
		*(*models.Entity)(dstSlot) = owner
		from, to := e.instance(srcSlot), e.instance(dstSlot)
		e.desc.Move(to, from)
		e.pool.Free(srcSlot)
		if repoint != nil {
			repoint(owner, from, to)
		}
		moved++
	}

	if moved > 0 {
		r.logger.Debug("pool compacted",
			log.String("type", e.desc.Name),
			log.Int("moved", moved),
			log.Int("slabs", e.pool.SlabCount()),
		)
	}
	return moved, nil
}

// Serialize passes ptr and the type's version to its serialize hook.
func (r *Registry) Serialize(id models.TypeID, ptr unsafe.Pointer, ar encoding.Archive) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	if e.desc.Serialize == nil {
		return errors.Wrap(ErrNotSerializable, e.desc.Name)
	}
	return e.desc.Serialize(ptr, ar, e.desc.Version)
}

// Deserialize fills a created instance from ar. version is the one the data
// was written with.
func (r *Registry) Deserialize(id models.TypeID, ptr unsafe.Pointer, ar encoding.Archive, version uint32) error {
	e, err := r.entry(id)
	if err != nil {
		return err
	}
	if e.desc.Deserialize == nil {
		return errors.Wrap(ErrNotSerializable, e.desc.Name)
	}
	return e.desc.Deserialize(ptr, ar, version)
}
