package stress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/ecscore/internal/core/models"
	"github.com/zeusync/ecscore/internal/core/world"
)

func runSmall(t *testing.T, seed uint64) (*world.World, Types, Result) {
	t.Helper()
	w := world.New()
	ts, err := RegisterTypes(w)
	require.NoError(t, err)

	p := DefaultParams()
	p.Entities = 500
	p.Seed = seed
	res, err := Run(context.Background(), w, ts, p, nil)
	require.NoError(t, err)
	return w, ts, res
}

func TestRun(t *testing.T) {
	w, ts, res := runSmall(t, 7)

	assert.Equal(t, 500, res.Created)
	assert.Equal(t, 250, res.Integrated)
	assert.Positive(t, res.Destroyed)
	assert.Equal(t, w.Len(), res.Live)
	// Every entity, duplicated ones included, carries a position.
	assert.Equal(t, res.Live, w.Count(ts.Position))
	assert.NoError(t, w.Table().CheckInvariants())

	for _, id := range []models.TypeID{ts.Position, ts.Velocity, ts.Tag} {
		st, err := w.Registry().Stats(id)
		require.NoError(t, err)
		assert.Zero(t, st.Holes)
	}
}

func TestRun_Deterministic(t *testing.T) {
	_, _, a := runSmall(t, 42)
	_, _, b := runSmall(t, 42)

	assert.Equal(t, a.Destroyed, b.Destroyed)
	assert.Equal(t, a.Live, b.Live)
	assert.Equal(t, a.Moved, b.Moved)
	assert.NotEqual(t, a.World, b.World)
}

func TestRun_Cancelled(t *testing.T) {
	w := world.New()
	ts, err := RegisterTypes(w)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := DefaultParams()
	p.Entities = 10
	_, err = Run(ctx, w, ts, p, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
