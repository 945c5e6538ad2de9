// Package hierarchy keeps every live entity in one dense array ordered so
// that each entity is immediately followed by its whole subtree, in
// depth-first order. Subtree moves and removals are therefore single slice
// copies, and per-entity data lives in a sparse record array indexed by the
// entity handle.
package hierarchy

import (
	"math"
	"slices"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/zeusync/ecscore/internal/core/models"
)

type record struct {
	position   uint32
	parent     models.Entity
	childCount uint32 // all descendants, not only direct children
	local      models.Transform
	components []models.Attachment
	alive      bool
}

// Table is not safe for concurrent use.
type Table struct {
	dense   []models.Entity
	records []record
	free    []models.Entity
}

// New returns an empty table with room for capacity entities.
func New(capacity int) *Table {
	t := &Table{
		dense:   make([]models.Entity, 0, capacity),
		records: make([]record, 1, capacity+1),
	}
	return t
}

func (t *Table) record(e models.Entity) (*record, error) {
	if e == models.NullEntity || int(e) >= len(t.records) || !t.records[e].alive {
		return nil, errors.Wrapf(ErrEntityNotFound, "entity %d", e)
	}
	return &t.records[e], nil
}

func (t *Table) allocID() (models.Entity, error) {
	if n := len(t.free); n > 0 {
		e := t.free[n-1]
		t.free = t.free[:n-1]
		return e, nil
	}
	if uint64(len(t.records)) > math.MaxUint32 {
		return models.NullEntity, ErrEntityIDOverflow
	}
	t.records = append(t.records, record{})
	return models.Entity(len(t.records) - 1), nil
}

// restamp rewrites the position of every entity from index from onwards.
func (t *Table) restamp(from int) {
	for i := from; i < len(t.dense); i++ {
		t.records[t.dense[i]].position = uint32(i)
	}
}

func (t *Table) adjustAncestors(from models.Entity, delta int) {
	for a := from; a != models.NullEntity; a = t.records[a].parent {
		t.records[a].childCount = uint32(int(t.records[a].childCount) + delta)
	}
}

// insertAt returns where a new subtree under parent goes: right after the
// parent's current subtree, or at the tail for roots.
func (t *Table) insertAt(parent models.Entity) int {
	if parent == models.NullEntity {
		return len(t.dense)
	}
	p := &t.records[parent]
	return int(p.position + p.childCount + 1)
}

// Create adds an entity as the last child of parent, or as a root when parent
// is NullEntity.
func (t *Table) Create(parent models.Entity) (models.Entity, error) {
	if parent != models.NullEntity {
		if _, err := t.record(parent); err != nil {
			return models.NullEntity, errors.Wrap(err, "parent")
		}
	}
	pos := t.insertAt(parent)

	e, err := t.allocID()
	if err != nil {
		return models.NullEntity, err
	}
	t.dense = slices.Insert(t.dense, pos, e)

	r := &t.records[e]
	r.position = uint32(pos)
	r.parent = parent
	r.childCount = 0
	r.local = models.IdentityTransform()
	r.alive = true

	t.restamp(pos + 1)
	t.adjustAncestors(parent, 1)
	return e, nil
}

// Destroy removes e and its whole subtree. visit, when non-nil, is called for
// every removed entity before anything is removed, descendants first. The
// null entity is ignored.
func (t *Table) Destroy(e models.Entity, visit func(models.Entity)) error {
	if e == models.NullEntity {
		return nil
	}
	r, err := t.record(e)
	if err != nil {
		return err
	}
	pos, n := int(r.position), int(r.childCount)+1
	parent := r.parent

	if visit != nil {
		for i := pos + n - 1; i >= pos; i-- {
			visit(t.dense[i])
		}
	}

	for _, x := range t.dense[pos : pos+n] {
		rec := &t.records[x]
		clear(rec.components)
		*rec = record{components: rec.components[:0]}
		t.free = append(t.free, x)
	}

	t.dense = slices.Delete(t.dense, pos, pos+n)
	t.restamp(pos)
	t.adjustAncestors(parent, -n)
	return nil
}

// Reparent moves e with its subtree under parent (NullEntity makes it a root).
// The slice is cut out and reinserted after the new parent's subtree.
func (t *Table) Reparent(e, parent models.Entity) error {
	r, err := t.record(e)
	if err != nil {
		return err
	}
	if parent == r.parent {
		return nil
	}
	if parent != models.NullEntity {
		p, err := t.record(parent)
		if err != nil {
			return errors.Wrap(err, "parent")
		}
		if p.position >= r.position && p.position <= r.position+r.childCount {
			return errors.Wrapf(ErrCycle, "entity %d under %d", e, parent)
		}
	}

	pos, n := int(r.position), int(r.childCount)+1
	moved := slices.Clone(t.dense[pos : pos+n])
	t.adjustAncestors(r.parent, -n)
	t.dense = slices.Delete(t.dense, pos, pos+n)
	t.restamp(pos)

	ins := t.insertAt(parent)
	t.dense = slices.Insert(t.dense, ins, moved...)
	t.restamp(min(pos, ins))

	t.records[e].parent = parent
	t.adjustAncestors(parent, n)
	return nil
}

func (t *Table) Alive(e models.Entity) bool {
	_, err := t.record(e)
	return err == nil
}

// Len is the number of live entities.
func (t *Table) Len() int { return len(t.dense) }

// Dense exposes the ordered id array. It must not be modified and is
// invalidated by any structural change.
func (t *Table) Dense() []models.Entity { return t.dense }

func (t *Table) Position(e models.Entity) (int, bool) {
	r, err := t.record(e)
	if err != nil {
		return 0, false
	}
	return int(r.position), true
}

// Parent returns NullEntity for roots and unknown entities.
func (t *Table) Parent(e models.Entity) models.Entity {
	r, err := t.record(e)
	if err != nil {
		return models.NullEntity
	}
	return r.parent
}

// ChildCount counts every descendant of e.
func (t *Table) ChildCount(e models.Entity) uint32 {
	r, err := t.record(e)
	if err != nil {
		return 0
	}
	return r.childCount
}

// Children returns the direct children of e in order.
func (t *Table) Children(e models.Entity) []models.Entity {
	r, err := t.record(e)
	if err != nil || r.childCount == 0 {
		return nil
	}
	var out []models.Entity
	end := int(r.position + r.childCount)
	for i := int(r.position) + 1; i <= end; {
		child := t.dense[i]
		out = append(out, child)
		i += int(t.records[child].childCount) + 1
	}
	return out
}

// Subtree returns e followed by all its descendants as a view of the dense
// array.
func (t *Table) Subtree(e models.Entity) []models.Entity {
	r, err := t.record(e)
	if err != nil {
		return nil
	}
	return t.dense[r.position : r.position+r.childCount+1]
}

// Descendants is Subtree without e itself.
func (t *Table) Descendants(e models.Entity) []models.Entity {
	if sub := t.Subtree(e); len(sub) > 0 {
		return sub[1:]
	}
	return nil
}

// Roots returns every entity without a parent, in order.
func (t *Table) Roots() []models.Entity {
	var out []models.Entity
	for i := 0; i < len(t.dense); {
		root := t.dense[i]
		out = append(out, root)
		i += int(t.records[root].childCount) + 1
	}
	return out
}

// Depth is zero for roots.
func (t *Table) Depth(e models.Entity) int {
	if !t.Alive(e) {
		return -1
	}
	depth := 0
	for a := t.records[e].parent; a != models.NullEntity; a = t.records[a].parent {
		depth++
	}
	return depth
}

func (t *Table) LocalTransform(e models.Entity) (models.Transform, bool) {
	r, err := t.record(e)
	if err != nil {
		return models.Transform{}, false
	}
	return r.local, true
}

func (t *Table) SetLocalTransform(e models.Entity, tr models.Transform) error {
	r, err := t.record(e)
	if err != nil {
		return err
	}
	r.local = tr
	return nil
}

// Attach records a component instance on e. One instance per type.
func (t *Table) Attach(e models.Entity, typ models.TypeID, ptr unsafe.Pointer) error {
	r, err := t.record(e)
	if err != nil {
		return err
	}
	for _, a := range r.components {
		if a.Type == typ {
			return errors.Wrapf(ErrComponentExists, "entity %d type %d", e, typ)
		}
	}
	r.components = append(r.components, models.Attachment{Type: typ, Ptr: ptr})
	return nil
}

// Detach forgets the instance of typ on e and returns it.
func (t *Table) Detach(e models.Entity, typ models.TypeID) (unsafe.Pointer, bool) {
	r, err := t.record(e)
	if err != nil {
		return nil, false
	}
	for i, a := range r.components {
		if a.Type == typ {
			r.components = slices.Delete(r.components, i, i+1)
			return a.Ptr, true
		}
	}
	return nil, false
}

// Lookup scans the attachment list of e.
func (t *Table) Lookup(e models.Entity, typ models.TypeID) (unsafe.Pointer, bool) {
	r, err := t.record(e)
	if err != nil {
		return nil, false
	}
	for _, a := range r.components {
		if a.Type == typ {
			return a.Ptr, true
		}
	}
	return nil, false
}

// Repoint updates the address recorded for typ on e after a relocation.
func (t *Table) Repoint(e models.Entity, typ models.TypeID, ptr unsafe.Pointer) bool {
	r, err := t.record(e)
	if err != nil {
		return false
	}
	for i := range r.components {
		if r.components[i].Type == typ {
			r.components[i].Ptr = ptr
			return true
		}
	}
	return false
}

// Attachments exposes the attachment list of e. It must not be modified.
func (t *Table) Attachments(e models.Entity) []models.Attachment {
	r, err := t.record(e)
	if err != nil {
		return nil
	}
	return r.components
}
