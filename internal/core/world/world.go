// Package world binds the entity table to the component registry. It is the
// surface the rest of an engine talks to: entities are created and destroyed
// here, components are attached by type id and reached through raw pointers,
// and every type can be iterated as (entity, pointer) pairs.
//
// A World is single-threaded. Callers that share one across goroutines must
// serialize every call.
package world

import (
	"iter"
	"slices"
	"unsafe"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeusync/ecscore/internal/core/hierarchy"
	"github.com/zeusync/ecscore/internal/core/memory"
	"github.com/zeusync/ecscore/internal/core/models"
	"github.com/zeusync/ecscore/internal/core/observability/log"
	"github.com/zeusync/ecscore/internal/core/registry"
	"github.com/zeusync/ecscore/pkg/encoding"
)

type World struct {
	id       uuid.UUID
	table    *hierarchy.Table
	registry *registry.Registry
	logger   log.Log
}

type options struct {
	id           uuid.UUID
	logger       log.Log
	capacity     int
	registryOpts []registry.Option
}

type Option func(*options)

func WithLogger(l log.Log) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEntityCapacity pre-sizes the entity table.
func WithEntityCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

func WithRegistryOptions(opts ...registry.Option) Option {
	return func(o *options) { o.registryOpts = append(o.registryOpts, opts...) }
}

// WithID fixes the world identifier instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(o *options) { o.id = id }
}

func New(opts ...Option) *World {
	o := options{logger: log.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == uuid.Nil {
		o.id = uuid.New()
	}

	logger := o.logger.With(log.String("world", o.id.String()))
	regOpts := append([]registry.Option{registry.WithLogger(logger)}, o.registryOpts...)
	return &World{
		id:       o.id,
		table:    hierarchy.New(o.capacity),
		registry: registry.New(regOpts...),
		logger:   logger,
	}
}

func (w *World) ID() uuid.UUID { return w.id }

// Registry gives access to type registration, including registry.Register.
func (w *World) Registry() *registry.Registry { return w.registry }

// Table exposes the hierarchy for read-only inspection.
func (w *World) Table() *hierarchy.Table { return w.table }

// Logger is the world-scoped logger handed to collaborators.
func (w *World) Logger() log.Log { return w.logger }

func (w *World) RegisterComponent(desc registry.Descriptor) (models.TypeID, error) {
	return w.registry.Register(desc)
}

// Create adds an entity with no components under parent (NullEntity for a root).
func (w *World) Create(parent models.Entity) (models.Entity, error) {
	return w.table.Create(parent)
}

// Destroy releases every component of e and of its descendants, then removes
// the subtree. Destroying NullEntity does nothing.
func (w *World) Destroy(e models.Entity) error {
	return w.table.Destroy(e, w.releaseAll)
}

func (w *World) releaseAll(e models.Entity) {
	for _, a := range w.table.Attachments(e) {
		// Attached types are registered by construction.
		if err := w.registry.Release(a.Type, a.Ptr); err != nil {
			w.logger.Warn("component release failed",
				log.Uint32("entity", uint32(e)),
				log.Uint32("type", uint32(a.Type)),
				log.Error(err),
			)
		}
	}
}

// Duplicate copies e and its subtree, components included, and places the
// copy next to the original under the same parent. Entities are created in
// the source's depth-first order so the copy is contiguous too. On failure
// everything created so far is destroyed again.
func (w *World) Duplicate(e models.Entity) (models.Entity, error) {
	if e == models.NullEntity {
		return models.NullEntity, nil
	}
	src := w.table.Subtree(e)
	if src == nil {
		return models.NullEntity, errors.Wrapf(hierarchy.ErrEntityNotFound, "entity %d", e)
	}
	originals := slices.Clone(src)
	mapping := make(map[models.Entity]models.Entity, len(originals))

	root := models.NullEntity
	fail := func(err error) (models.Entity, error) {
		if root != models.NullEntity {
			if derr := w.Destroy(root); derr != nil {
				w.logger.Error("duplicate rollback failed",
					log.Uint32("copy", uint32(root)),
					log.Error(derr),
				)
			}
		}
		return models.NullEntity, errors.Wrapf(err, "duplicate entity %d", e)
	}

	for i, orig := range originals {
		parent := w.table.Parent(orig)
		if i > 0 {
			parent = mapping[parent]
		}
		dup, err := w.table.Create(parent)
		if err != nil {
			return fail(err)
		}
		if i == 0 {
			root = dup
		}
		mapping[orig] = dup

		tr, _ := w.table.LocalTransform(orig)
		_ = w.table.SetLocalTransform(dup, tr)

		for _, a := range w.table.Attachments(orig) {
			ptr, err := w.registry.Clone(a.Type, dup, a.Ptr)
			if err != nil {
				return fail(err)
			}
			_ = w.table.Attach(dup, a.Type, ptr)
		}
	}

	w.logger.Debug("entity duplicated",
		log.Uint32("source", uint32(e)),
		log.Uint32("copy", uint32(root)),
		log.Int("entities", len(originals)),
	)
	return root, nil
}

// Reparent moves e and its subtree under parent.
func (w *World) Reparent(e, parent models.Entity) error {
	return w.table.Reparent(e, parent)
}

func (w *World) Alive(e models.Entity) bool { return w.table.Alive(e) }
func (w *World) Len() int { return w.table.Len() }
func (w *World) Parent(e models.Entity) models.Entity { return w.table.Parent(e) }
func (w *World) Children(e models.Entity) []models.Entity { return w.table.Children(e) }
func (w *World) ChildCount(e models.Entity) uint32 { return w.table.ChildCount(e) }
func (w *World) Descendants(e models.Entity) []models.Entity { return w.table.Descendants(e) }
func (w *World) Roots() []models.Entity { return w.table.Roots() }

func (w *World) LocalTransform(e models.Entity) (models.Transform, bool) {
	return w.table.LocalTransform(e)
}

func (w *World) SetLocalTransform(e models.Entity, tr models.Transform) error {
	return w.table.SetLocalTransform(e, tr)
}

// Add creates a component of type t on e and returns its address, which
// stays fixed until the component is removed (or moved by Compact).
func (w *World) Add(e models.Entity, t models.TypeID) (unsafe.Pointer, error) {
	if !w.table.Alive(e) {
		return nil, errors.Wrapf(hierarchy.ErrEntityNotFound, "entity %d", e)
	}
	if _, ok := w.table.Lookup(e, t); ok {
		return nil, errors.Wrapf(hierarchy.ErrComponentExists, "entity %d type %s", e, w.registry.Name(t))
	}
	ptr, err := w.registry.Alloc(t, e)
	if err != nil {
		return nil, err
	}
	if err = w.table.Attach(e, t, ptr); err != nil {
		_ = w.registry.Release(t, ptr)
		return nil, err
	}
	return ptr, nil
}

// Remove destroys the component of type t on e. A missing component is not
// an error; an unregistered type is.
func (w *World) Remove(e models.Entity, t models.TypeID) error {
	if _, err := w.registry.Descriptor(t); err != nil {
		return err
	}
	ptr, ok := w.table.Detach(e, t)
	if !ok {
		return nil
	}
	return w.registry.Release(t, ptr)
}

// Get returns nil when e has no component of type t.
func (w *World) Get(e models.Entity, t models.TypeID) unsafe.Pointer {
	ptr, _ := w.table.Lookup(e, t)
	return ptr
}

func (w *World) Has(e models.Entity, t models.TypeID) bool {
	_, ok := w.table.Lookup(e, t)
	return ok
}

// Count is the number of live components of type t.
func (w *World) Count(t models.TypeID) int {
	return w.registry.Count(t)
}

// Iter walks every component of type t. Adding or removing components of
// that type while the iterator is in use invalidates it.
func (w *World) Iter(t models.TypeID) (*registry.Iterator, error) {
	return w.registry.Iter(t)
}

// Each is Iter as a range-over-func sequence. Unknown types yield nothing.
func (w *World) Each(t models.TypeID) iter.Seq2[models.Entity, unsafe.Pointer] {
	return func(yield func(models.Entity, unsafe.Pointer) bool) {
		it, err := w.registry.Iter(t)
		if err != nil {
			return
		}
		for it.Next() {
			if !yield(it.Entity(), it.Pointer()) {
				return
			}
		}
	}
}

// Compact moves components of type t from the end of their pool into holes
// so that iteration touches fewer slots. Moved components change address;
// the owners' references are updated.
func (w *World) Compact(t models.TypeID) (int, error) {
	return w.registry.Compact(t, func(owner models.Entity, _, to unsafe.Pointer) {
		w.table.Repoint(owner, t, to)
	})
}

// SerializeComponent hands the component of type t on e to its serialize hook.
func (w *World) SerializeComponent(e models.Entity, t models.TypeID, ar encoding.Archive) error {
	ptr := w.Get(e, t)
	if ptr == nil {
		return errors.Errorf("entity %d has no %s component", e, w.registry.Name(t))
	}
	return w.registry.Serialize(t, ptr, ar)
}

// DeserializeComponent fills the component of type t on e from ar.
func (w *World) DeserializeComponent(e models.Entity, t models.TypeID, ar encoding.Archive, version uint32) error {
	ptr := w.Get(e, t)
	if ptr == nil {
		return errors.Errorf("entity %d has no %s component", e, w.registry.Name(t))
	}
	return w.registry.Deserialize(t, ptr, ar, version)
}

type TypeStats struct {
	ID   models.TypeID
	Name string
	memory.Stats
}

type Stats struct {
	Entities int
	Types    []TypeStats
}

func (w *World) Stats() Stats {
	st := Stats{Entities: w.table.Len()}
	for _, id := range w.registry.Types() {
		ps, _ := w.registry.Stats(id)
		st.Types = append(st.Types, TypeStats{ID: id, Name: w.registry.Name(id), Stats: ps})
	}
	return st
}
