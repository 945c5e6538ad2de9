package world

import (
	"testing"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/ecscore/internal/config"
	"github.com/zeusync/ecscore/internal/core/hierarchy"
	"github.com/zeusync/ecscore/internal/core/memory"
	"github.com/zeusync/ecscore/internal/core/models"
	"github.com/zeusync/ecscore/internal/core/observability/log"
	"github.com/zeusync/ecscore/internal/core/registry"
	"github.com/zeusync/ecscore/pkg/encoding"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type velocity struct {
	DX, DY float32
}

// hooks counts lifecycle calls per instance address.
type hooks struct {
	created   int
	destroyed map[unsafe.Pointer]int
	copied    int
	moved     int
}

func newHooks() *hooks {
	return &hooks{destroyed: map[unsafe.Pointer]int{}}
}

func (h *hooks) descriptor(name string) registry.Descriptor {
	return registry.Descriptor{
		Name:    name,
		Size:    16,
		Align:   8,
		Version: 1,
		Create:  func(unsafe.Pointer) { h.created++ },
		Destroy: func(ptr unsafe.Pointer) { h.destroyed[ptr]++ },
		Move: func(dst, src unsafe.Pointer) {
			h.moved++
			*(*[2]uint64)(dst) = *(*[2]uint64)(src)
		},
		Copy: func(dst, src unsafe.Pointer) {
			h.copied++
			*(*[2]uint64)(dst) = *(*[2]uint64)(src)
		},
	}
}

func mustCreate(t *testing.T, w *World, parent models.Entity) models.Entity {
	t.Helper()
	e, err := w.Create(parent)
	require.NoError(t, err)
	return e
}

func mustAdd(t *testing.T, w *World, e models.Entity, typ models.TypeID) unsafe.Pointer {
	t.Helper()
	ptr, err := w.Add(e, typ)
	require.NoError(t, err)
	return ptr
}

func TestScenarioA_DenseOrder(t *testing.T) {
	w := New()
	r := mustCreate(t, w, models.NullEntity)
	a := mustCreate(t, w, r)
	b := mustCreate(t, w, r)
	c := mustCreate(t, w, a)

	assert.Equal(t, []models.Entity{r, a, c, b}, w.Table().Dense())
	assert.Equal(t, uint32(3), w.ChildCount(r))
	assert.Equal(t, uint32(1), w.ChildCount(a))
	assert.Equal(t, []models.Entity{a, b}, w.Children(r))
	assert.Equal(t, r, w.Parent(b))
}

func TestScenarioB_DestroyReleasesSubtreeComponents(t *testing.T) {
	w := New()
	h := newHooks()
	typ, err := w.RegisterComponent(h.descriptor("blob"))
	require.NoError(t, err)

	r := mustCreate(t, w, models.NullEntity)
	a := mustCreate(t, w, r)
	b := mustCreate(t, w, r)
	c := mustCreate(t, w, a)
	pa := mustAdd(t, w, a, typ)
	pc := mustAdd(t, w, c, typ)
	pb := mustAdd(t, w, b, typ)

	require.NoError(t, w.Destroy(a))

	assert.Equal(t, []models.Entity{r, b}, w.Table().Dense())
	assert.Equal(t, uint32(1), w.ChildCount(r))
	assert.Equal(t, 1, h.destroyed[pa])
	assert.Equal(t, 1, h.destroyed[pc])
	assert.Zero(t, h.destroyed[pb])
	assert.Equal(t, 1, w.Count(typ))
	require.NoError(t, w.Table().CheckInvariants())
}

func TestDestroyNull_LeavesStateUnchanged(t *testing.T) {
	w := New()
	h := newHooks()
	typ, err := w.RegisterComponent(h.descriptor("blob"))
	require.NoError(t, err)
	r := mustCreate(t, w, models.NullEntity)
	mustCreate(t, w, r)
	mustAdd(t, w, r, typ)

	before := append([]models.Entity(nil), w.Table().Dense()...)
	require.NoError(t, w.Destroy(models.NullEntity))
	assert.Equal(t, before, w.Table().Dense())
	assert.Equal(t, uint32(1), w.ChildCount(r))
	assert.Equal(t, 1, w.Count(typ))
	assert.Empty(t, h.destroyed)
}

func TestScenarioD_Duplicate(t *testing.T) {
	w := New()
	h1, h2 := newHooks(), newHooks()
	t1, err := w.RegisterComponent(h1.descriptor("first"))
	require.NoError(t, err)
	t2, err := w.RegisterComponent(h2.descriptor("second"))
	require.NoError(t, err)

	root := mustCreate(t, w, models.NullEntity)
	e := mustCreate(t, w, root)
	child := mustCreate(t, w, e)
	sibling := mustCreate(t, w, root)
	*(*uint64)(mustAdd(t, w, e, t1)) = 11
	*(*uint64)(mustAdd(t, w, e, t2)) = 22
	*(*uint64)(mustAdd(t, w, child, t1)) = 33

	tr := models.IdentityTransform()
	tr.Translation = [3]float32{4, 5, 6}
	require.NoError(t, w.SetLocalTransform(child, tr))

	dup, err := w.Duplicate(e)
	require.NoError(t, err)

	assert.Equal(t, 2, h1.copied)
	assert.Equal(t, 1, h2.copied)

	dupKids := w.Children(dup)
	require.Len(t, dupKids, 1)
	dupChild := dupKids[0]
	assert.Equal(t, []models.Entity{root, e, child, sibling, dup, dupChild}, w.Table().Dense())
	assert.Equal(t, root, w.Parent(dup))
	assert.Equal(t, uint32(1), w.ChildCount(dup))
	assert.Equal(t, uint32(5), w.ChildCount(root))

	assert.Equal(t, uint64(11), *(*uint64)(w.Get(dup, t1)))
	assert.Equal(t, uint64(22), *(*uint64)(w.Get(dup, t2)))
	assert.Equal(t, uint64(33), *(*uint64)(w.Get(dupChild, t1)))
	assert.NotEqual(t, w.Get(e, t1), w.Get(dup, t1))

	got, _ := w.LocalTransform(dupChild)
	assert.Equal(t, tr, got)
	require.NoError(t, w.Table().CheckInvariants())

	null, err := w.Duplicate(models.NullEntity)
	require.NoError(t, err)
	assert.Equal(t, models.NullEntity, null)

	_, err = w.Duplicate(999)
	assert.ErrorIs(t, err, hierarchy.ErrEntityNotFound)
}

func TestDuplicate_RollsBackOnExhaustion(t *testing.T) {
	w := New(WithRegistryOptions(registry.WithSlabCapacity(2), registry.WithMaxSlabs(1)))
	h := newHooks()
	typ, err := w.RegisterComponent(h.descriptor("blob"))
	require.NoError(t, err)

	root := mustCreate(t, w, models.NullEntity)
	child := mustCreate(t, w, root)
	mustAdd(t, w, root, typ)
	mustAdd(t, w, child, typ)

	_, err = w.Duplicate(root)
	assert.ErrorIs(t, err, memory.ErrPoolExhausted)
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 2, w.Count(typ))
	require.NoError(t, w.Table().CheckInvariants())
}

func TestLoggerCarriesWorldID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := New(
		WithLogger(log.FromZap(zap.New(core), log.LevelDebug)),
		WithRegistryOptions(registry.WithSlabCapacity(1), registry.WithMaxSlabs(1)),
	)
	h := newHooks()
	typ, err := w.RegisterComponent(h.descriptor("blob"))
	require.NoError(t, err)
	root := mustCreate(t, w, models.NullEntity)
	mustAdd(t, w, root, typ)

	_, err = w.Duplicate(root)
	require.ErrorIs(t, err, memory.ErrPoolExhausted)
	assert.Zero(t, logs.FilterMessage("duplicate rollback failed").Len())

	w.Logger().Info("world message")
	entries := logs.FilterMessage("world message").All()
	require.Len(t, entries, 1)
	assert.Equal(t, w.ID().String(), entries[0].ContextMap()["world"])
}

func TestPointerStabilityAcrossGrowth(t *testing.T) {
	w := New(WithRegistryOptions(registry.WithSlabCapacity(4)))
	typ, err := registry.Register[velocity](w.Registry(), "velocity")
	require.NoError(t, err)

	type pinned struct {
		e   models.Entity
		ptr *velocity
	}
	var all []pinned
	for i := 0; i < 50; i++ {
		e := mustCreate(t, w, models.NullEntity)
		v, err := AddOf[velocity](w, e, typ)
		require.NoError(t, err)
		v.DX = float32(i)
		all = append(all, pinned{e, v})
	}

	for i, p := range all {
		assert.Same(t, p.ptr, GetOf[velocity](w, p.e, typ))
		assert.Equal(t, float32(i), p.ptr.DX)
	}
	st, err := w.Registry().Stats(typ)
	require.NoError(t, err)
	assert.Equal(t, 13, st.Slabs)
}

func TestComponentSurface(t *testing.T) {
	w := New()
	h := newHooks()
	typ, err := w.RegisterComponent(h.descriptor("blob"))
	require.NoError(t, err)
	e := mustCreate(t, w, models.NullEntity)

	_, err = w.Add(e, 42)
	assert.ErrorIs(t, err, registry.ErrUnknownType)
	_, err = w.Add(999, typ)
	assert.ErrorIs(t, err, hierarchy.ErrEntityNotFound)

	ptr := mustAdd(t, w, e, typ)
	assert.Equal(t, 1, h.created)
	_, err = w.Add(e, typ)
	assert.ErrorIs(t, err, hierarchy.ErrComponentExists)
	assert.Equal(t, 1, w.Count(typ))

	assert.True(t, w.Has(e, typ))
	assert.Equal(t, ptr, w.Get(e, typ))

	require.NoError(t, w.Remove(e, typ))
	assert.Equal(t, 1, h.destroyed[ptr])
	assert.Nil(t, w.Get(e, typ))
	assert.False(t, w.Has(e, typ))

	// Removing again is a no-op, removing an unknown type is not.
	require.NoError(t, w.Remove(e, typ))
	assert.Equal(t, 1, h.destroyed[ptr])
	assert.ErrorIs(t, w.Remove(e, 42), registry.ErrUnknownType)
}

func TestIterationCompleteness(t *testing.T) {
	w := New(WithRegistryOptions(registry.WithSlabCapacity(5)))
	typ, err := registry.Register[velocity](w.Registry(), "velocity")
	require.NoError(t, err)

	var entities []models.Entity
	for i := 0; i < 23; i++ {
		e := mustCreate(t, w, models.NullEntity)
		v, err := AddOf[velocity](w, e, typ)
		require.NoError(t, err)
		v.DX = float32(e)
		entities = append(entities, e)
	}
	removed := map[models.Entity]bool{}
	for i, e := range entities {
		if i%3 == 0 {
			require.NoError(t, w.Remove(e, typ))
			removed[e] = true
		}
	}

	seen := map[models.Entity]int{}
	for e, v := range EachOf[velocity](w, typ) {
		seen[e]++
		assert.Equal(t, float32(e), v.DX)
	}
	assert.Len(t, seen, w.Count(typ))
	for _, e := range entities {
		if removed[e] {
			assert.Zero(t, seen[e])
		} else {
			assert.Equal(t, 1, seen[e])
		}
	}

	it, err := w.Iter(typ)
	require.NoError(t, err)
	it.SeekEnd()
	back := 0
	for it.Prev() {
		back++
		assert.False(t, removed[it.Entity()])
	}
	assert.Equal(t, len(seen), back)

	count := 0
	for range w.Each(99) {
		count++
	}
	assert.Zero(t, count)
}

func TestEach_StopsEarly(t *testing.T) {
	w := New()
	typ, err := registry.Register[velocity](w.Registry(), "velocity")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := w.Add(mustCreate(t, w, models.NullEntity), typ)
		require.NoError(t, err)
	}
	n := 0
	for range w.Each(typ) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestCompactRepointsOwners(t *testing.T) {
	w := New(WithRegistryOptions(registry.WithSlabCapacity(4)))
	h := newHooks()
	typ, err := w.RegisterComponent(h.descriptor("blob"))
	require.NoError(t, err)

	var entities []models.Entity
	for i := 0; i < 10; i++ {
		e := mustCreate(t, w, models.NullEntity)
		*(*uint64)(mustAdd(t, w, e, typ)) = uint64(e)
		entities = append(entities, e)
	}
	for _, i := range []int{1, 4, 6} {
		require.NoError(t, w.Remove(entities[i], typ))
	}

	moved, err := w.Compact(typ)
	require.NoError(t, err)
	assert.Equal(t, 3, moved)
	assert.Equal(t, 3, h.moved)

	for e, ptr := range w.Each(typ) {
		assert.Equal(t, ptr, w.Get(e, typ))
		assert.Equal(t, uint64(e), *(*uint64)(ptr))
	}
	st, err := w.Registry().Stats(typ)
	require.NoError(t, err)
	assert.Zero(t, st.Holes)
	assert.Equal(t, 7, st.Live)
	assert.Equal(t, 3, st.Slabs, "slabs are never released")
}

func TestReparentKeepsComponents(t *testing.T) {
	w := New()
	typ, err := registry.Register[velocity](w.Registry(), "velocity")
	require.NoError(t, err)
	a := mustCreate(t, w, models.NullEntity)
	b := mustCreate(t, w, models.NullEntity)
	v, err := AddOf[velocity](w, b, typ)
	require.NoError(t, err)

	require.NoError(t, w.Reparent(b, a))
	assert.Same(t, v, GetOf[velocity](w, b, typ))
	assert.Equal(t, []models.Entity{a}, w.Roots())
	assert.Equal(t, []models.Entity{b}, w.Descendants(a))
}

func TestSerializeComponent(t *testing.T) {
	w := New()
	typ, err := registry.Register[velocity](w.Registry(), "velocity")
	require.NoError(t, err)
	a := mustCreate(t, w, models.NullEntity)
	b := mustCreate(t, w, models.NullEntity)

	v, err := AddOf[velocity](w, a, typ)
	require.NoError(t, err)
	*v = velocity{DX: 1.25, DY: -3}

	buf := &encoding.Buffer{}
	require.NoError(t, w.SerializeComponent(a, typ, buf))
	assert.Error(t, w.DeserializeComponent(b, typ, buf, 1))

	_, err = w.Add(b, typ)
	require.NoError(t, err)
	require.NoError(t, w.DeserializeComponent(b, typ, buf, 1))
	assert.Equal(t, *v, *GetOf[velocity](w, b, typ))
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.SlabCapacity = 3
	cfg.Components = map[string]config.ComponentConfig{"velocity": {SlabCapacity: 10}}
	id := uuid.New()

	w := FromConfig(cfg, log.NewNop(), WithID(id))
	assert.Equal(t, id, w.ID())

	vel, err := registry.Register[velocity](w.Registry(), "velocity")
	require.NoError(t, err)
	other, err := registry.Register[[4]float32](w.Registry(), "color")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		e := mustCreate(t, w, models.NullEntity)
		mustAdd(t, w, e, vel)
		mustAdd(t, w, e, other)
	}

	stats := w.Stats()
	assert.Equal(t, 4, stats.Entities)
	require.Len(t, stats.Types, 2)
	assert.Equal(t, "velocity", stats.Types[0].Name)
	assert.Equal(t, 1, stats.Types[0].Slabs)
	assert.Equal(t, "color", stats.Types[1].Name)
	assert.Equal(t, 2, stats.Types[1].Slabs)
}
