// Package persist writes a world's hierarchy and components to a YAML
// document and reads it back. Component bytes come from each type's own
// serialize hook; this package only frames them.
package persist

import (
	"encoding/base64"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeusync/ecscore/internal/core/models"
	"github.com/zeusync/ecscore/internal/core/observability/log"
	"github.com/zeusync/ecscore/internal/core/registry"
	"github.com/zeusync/ecscore/internal/core/world"
	"github.com/zeusync/ecscore/pkg/encoding"
	"github.com/zeusync/ecscore/pkg/generic"
	"gopkg.in/yaml.v3"
)

const formatVersion = 1

// Document is the on-disk snapshot layout.
type Document struct {
	Format   int           `yaml:"format"`
	Snapshot string        `yaml:"snapshot"`
	World    string        `yaml:"world"`
	Created  time.Time     `yaml:"created"`
	Checksum uint64        `yaml:"checksum"`
	Entities []EntityEntry `yaml:"entities"`
}

// EntityEntry is one entity in dense order; parents always come first.
type EntityEntry struct {
	ID         uint32           `yaml:"id"`
	Parent     uint32           `yaml:"parent,omitempty"`
	Transform  TransformEntry   `yaml:"transform"`
	Components []ComponentEntry `yaml:"components,omitempty"`
}

type TransformEntry struct {
	Translation [3]float32 `yaml:"translation,flow"`
	Rotation    [4]float32 `yaml:"rotation,flow"`
	Scale       [3]float32 `yaml:"scale,flow"`
}

type ComponentEntry struct {
	Type    string `yaml:"type"`
	Version uint32 `yaml:"version"`
	Data    string `yaml:"data"`
}

var buffers = generic.NewPool(
	func() *encoding.Buffer { return &encoding.Buffer{} },
	func(b *encoding.Buffer) { b.Reset() },
)

// Saver snapshots worlds.
type Saver struct {
	logger log.Log
	now    func() time.Time
}

func NewSaver(logger log.Log) *Saver {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Saver{logger: logger, now: time.Now}
}

// Build captures w into a Document.
func (s *Saver) Build(w *world.World) (*Document, error) {
	reg := w.Registry()
	table := w.Table()
	doc := &Document{
		Format:   formatVersion,
		Snapshot: uuid.NewString(),
		World:    w.ID().String(),
		Created:  s.now().UTC(),
		Entities: make([]EntityEntry, 0, table.Len()),
	}

	buf := buffers.Get()
	defer buffers.Put(buf)

	for _, e := range table.Dense() {
		tr, _ := table.LocalTransform(e)
		entry := EntityEntry{
			ID:        uint32(e),
			Parent:    uint32(table.Parent(e)),
			Transform: TransformEntry(tr),
		}
		for _, a := range table.Attachments(e) {
			desc, err := reg.Descriptor(a.Type)
			if err != nil {
				return nil, err
			}
			buf.Reset()
			if err = reg.Serialize(a.Type, a.Ptr, buf); err != nil {
				return nil, errors.Wrapf(err, "serialize %s of entity %d", desc.Name, e)
			}
			entry.Components = append(entry.Components, ComponentEntry{
				Type:    desc.Name,
				Version: desc.Version,
				Data:    base64.StdEncoding.EncodeToString(buf.Bytes()),
			})
		}
		doc.Entities = append(doc.Entities, entry)
	}
	doc.Checksum = checksum(doc.Entities)
	return doc, nil
}

// Save writes a YAML snapshot of w to out.
func (s *Saver) Save(w *world.World, out io.Writer) error {
	doc, err := s.Build(w)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err = enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if err = enc.Close(); err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	s.logger.Info("snapshot saved",
		log.String("snapshot", doc.Snapshot),
		log.Int("entities", len(doc.Entities)),
	)
	return nil
}

// Load reads a snapshot from in and recreates its entities in w. Component
// types are matched by name and must already be registered in w. Ids are
// remapped; the created roots are returned. Nothing is left behind on error.
func Load(w *world.World, in io.Reader) ([]models.Entity, error) {
	var doc Document
	if err := yaml.NewDecoder(in).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return Restore(w, &doc)
}

// Restore recreates doc inside w.
func Restore(w *world.World, doc *Document) ([]models.Entity, error) {
	if doc.Format != formatVersion {
		return nil, errors.Wrapf(ErrCorrupt, "format %d", doc.Format)
	}
	if sum := checksum(doc.Entities); sum != doc.Checksum {
		return nil, errors.Wrapf(ErrChecksum, "want %x, got %x", doc.Checksum, sum)
	}

	reg := w.Registry()
	mapping := make(map[uint32]models.Entity, len(doc.Entities))
	var roots []models.Entity
	fail := func(err error) ([]models.Entity, error) {
		for _, r := range roots {
			if derr := w.Destroy(r); derr != nil {
				w.Logger().Error("snapshot rollback failed",
					log.Uint32("root", uint32(r)),
					log.Error(derr),
				)
			}
		}
		w.Logger().Warn("snapshot restore aborted", log.Error(err))
		return nil, err
	}

	for _, entry := range doc.Entities {
		parent := models.NullEntity
		if entry.Parent != 0 {
			p, ok := mapping[entry.Parent]
			if !ok {
				return fail(errors.Wrapf(ErrCorrupt, "entity %d listed before its parent %d", entry.ID, entry.Parent))
			}
			parent = p
		}
		e, err := w.Create(parent)
		if err != nil {
			return fail(err)
		}
		if parent == models.NullEntity {
			roots = append(roots, e)
		}
		mapping[entry.ID] = e
		_ = w.SetLocalTransform(e, models.Transform(entry.Transform))

		for _, comp := range entry.Components {
			id, ok := reg.Lookup(comp.Type)
			if !ok {
				return fail(errors.Wrapf(registry.ErrUnknownType, "%s", comp.Type))
			}
			data, err := base64.StdEncoding.DecodeString(comp.Data)
			if err != nil {
				return fail(errors.Wrapf(ErrCorrupt, "component %s of entity %d: %v", comp.Type, entry.ID, err))
			}
			if _, err = w.Add(e, id); err != nil {
				return fail(err)
			}
			if err = w.DeserializeComponent(e, id, encoding.NewBuffer(data), comp.Version); err != nil {
				return fail(errors.Wrapf(err, "deserialize %s of entity %d", comp.Type, entry.ID))
			}
		}
	}
	return roots, nil
}

func checksum(entities []EntityEntry) uint64 {
	d := xxhash.New()
	var scratch encoding.Buffer
	for _, e := range entities {
		scratch.Reset()
		_ = encoding.WriteUint32(&scratch, e.ID)
		_ = encoding.WriteUint32(&scratch, e.Parent)
		for _, v := range e.Transform.Translation {
			_ = encoding.WriteFloat32(&scratch, v)
		}
		for _, v := range e.Transform.Rotation {
			_ = encoding.WriteFloat32(&scratch, v)
		}
		for _, v := range e.Transform.Scale {
			_ = encoding.WriteFloat32(&scratch, v)
		}
		for _, c := range e.Components {
			_ = encoding.WriteString(&scratch, c.Type)
			_ = encoding.WriteUint32(&scratch, c.Version)
			_ = encoding.WriteString(&scratch, c.Data)
		}
		_, _ = d.Write(scratch.Bytes())
	}
	return d.Sum64()
}
