// Package stress drives a world through a randomized but reproducible
// workload: build a forest, attach components, integrate, destroy, duplicate
// and compact. It backs cmd/ecsbench and doubles as a soak test.
package stress

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeusync/ecscore/internal/core/models"
	"github.com/zeusync/ecscore/internal/core/observability/log"
	"github.com/zeusync/ecscore/internal/core/registry"
	"github.com/zeusync/ecscore/internal/core/world"
	"github.com/zeusync/ecscore/pkg/encoding"
	"github.com/zeusync/ecscore/pkg/sequence"
)

type Position struct {
	X, Y, Z float32
}

type Velocity struct {
	X, Y, Z float32
}

type Tag struct {
	Group uint32
}

type Params struct {
	Entities int
	// Depth bounds how deep the generated forest gets; 1 means roots only.
	Depth int
	// DestroyRatio is the share of entities picked for destruction.
	DestroyRatio float64
	Duplicates   int
	Seed         uint64
}

func DefaultParams() Params {
	return Params{
		Entities:     10_000,
		Depth:        6,
		DestroyRatio: 0.1,
		Duplicates:   4,
		Seed:         1,
	}
}

type Types struct {
	Position models.TypeID
	Velocity models.TypeID
	Tag      models.TypeID
}

type Result struct {
	World      uuid.UUID
	Created    int
	Destroyed  int
	Duplicated int
	Integrated int
	Moved      int
	Live       int
	Elapsed    time.Duration
}

// RegisterTypes registers the workload's component types on w.
func RegisterTypes(w *world.World) (Types, error) {
	var (
		ts  Types
		err error
	)
	ts.Position, err = registry.Register[Position](w.Registry(), "position",
		registry.WithSerializer(writeVec, readVec),
	)
	if err != nil {
		return ts, err
	}
	ts.Velocity, err = registry.Register[Velocity](w.Registry(), "velocity")
	if err != nil {
		return ts, err
	}
	ts.Tag, err = registry.Register[Tag](w.Registry(), "tag")
	return ts, err
}

func writeVec(p *Position, ar encoding.Archive, _ uint32) error {
	for _, v := range [3]float32{p.X, p.Y, p.Z} {
		if err := encoding.WriteFloat32(ar, v); err != nil {
			return err
		}
	}
	return nil
}

func readVec(p *Position, ar encoding.Archive, _ uint32) error {
	for _, dst := range [3]*float32{&p.X, &p.Y, &p.Z} {
		v, err := encoding.ReadFloat32(ar)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

type node struct {
	e     models.Entity
	depth int
}

// Run executes the workload on w. Types must already be registered.
func Run(ctx context.Context, w *world.World, ts Types, p Params, logger log.Log) (Result, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	start := time.Now()
	res := Result{World: w.ID()}
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))

	nodes := make([]node, 0, p.Entities)
	for i := range p.Entities {
		parent, depth := models.NullEntity, 0
		if len(nodes) > 0 && rng.IntN(8) != 0 {
			n := nodes[rng.IntN(len(nodes))]
			if n.depth+1 < p.Depth {
				parent, depth = n.e, n.depth+1
			}
		}
		e, err := w.Create(parent)
		if err != nil {
			return res, errors.Wrap(err, "create")
		}
		nodes = append(nodes, node{e: e, depth: depth})

		pos, err := world.AddOf[Position](w, e, ts.Position)
		if err != nil {
			return res, errors.Wrap(err, "add position")
		}
		*pos = Position{X: float32(i), Y: float32(depth)}
		if i%2 == 0 {
			vel, err := world.AddOf[Velocity](w, e, ts.Velocity)
			if err != nil {
				return res, errors.Wrap(err, "add velocity")
			}
			*vel = Velocity{X: 1, Y: 0.5, Z: -1}
		}
		if i%4 == 0 {
			tag, err := world.AddOf[Tag](w, e, ts.Tag)
			if err != nil {
				return res, errors.Wrap(err, "add tag")
			}
			tag.Group = uint32(depth)
		}
	}
	res.Created = len(nodes)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for e, vel := range world.EachOf[Velocity](w, ts.Velocity) {
		pos := world.GetOf[Position](w, e, ts.Position)
		if pos == nil {
			continue
		}
		pos.X += vel.X
		pos.Y += vel.Y
		pos.Z += vel.Z
		res.Integrated++
	}

	before := w.Len()
	victims := sequence.Map(sequence.From(nodes), func(n node) models.Entity { return n.e }).
		Filter(func(models.Entity) bool { return rng.Float64() < p.DestroyRatio }).
		Collect()
	for _, e := range victims {
		// Ancestors destroyed earlier take their subtree with them.
		if !w.Alive(e) {
			continue
		}
		if err := w.Destroy(e); err != nil {
			return res, errors.Wrap(err, "destroy")
		}
	}
	res.Destroyed = before - w.Len()
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for _, root := range sequence.From(w.Roots()).Take(p.Duplicates).Collect() {
		if _, err := w.Duplicate(root); err != nil {
			return res, errors.Wrap(err, "duplicate")
		}
		res.Duplicated++
	}

	for _, t := range []models.TypeID{ts.Position, ts.Velocity, ts.Tag} {
		moved, err := w.Compact(t)
		if err != nil {
			return res, errors.Wrap(err, "compact")
		}
		res.Moved += moved
	}

	if err := w.Table().CheckInvariants(); err != nil {
		return res, err
	}

	res.Live = w.Len()
	res.Elapsed = time.Since(start)
	logger.Info("workload finished",
		log.String("world", res.World.String()),
		log.Int("created", res.Created),
		log.Int("destroyed", res.Destroyed),
		log.Int("duplicated", res.Duplicated),
		log.Int("integrated", res.Integrated),
		log.Int("moved", res.Moved),
		log.Int("live", res.Live),
		log.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}
