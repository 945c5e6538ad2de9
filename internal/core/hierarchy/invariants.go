package hierarchy

import (
	"github.com/pkg/errors"
	"github.com/zeusync/ecscore/internal/core/models"
)

func (t *Table) isAncestor(a, x models.Entity) bool {
	for p := t.records[x].parent; p != models.NullEntity; p = t.records[p].parent {
		if p == a {
			return true
		}
	}
	return false
}

// CheckInvariants verifies that positions match the dense array, that every
// childCount equals the real number of descendants and that each subtree is
// exactly the run following its root. It is O(n * depth).
func (t *Table) CheckInvariants() error {
	descendants := make(map[models.Entity]uint32, len(t.dense))
	for i, e := range t.dense {
		if int(e) >= len(t.records) || !t.records[e].alive {
			return errors.Wrapf(ErrInvariantBroken, "dead entity %d at %d", e, i)
		}
		r := &t.records[e]
		if int(r.position) != i {
			return errors.Wrapf(ErrInvariantBroken, "entity %d stamped %d, stored at %d", e, r.position, i)
		}
		if r.parent != models.NullEntity {
			if !t.records[r.parent].alive || int(t.records[r.parent].position) >= i {
				return errors.Wrapf(ErrInvariantBroken, "entity %d precedes its parent %d", e, r.parent)
			}
		}
		end := i + int(r.childCount)
		if end >= len(t.dense) {
			return errors.Wrapf(ErrInvariantBroken, "subtree of %d overruns the dense array", e)
		}
		for j := i + 1; j <= end; j++ {
			if !t.isAncestor(e, t.dense[j]) {
				return errors.Wrapf(ErrInvariantBroken, "entity %d inside subtree of %d", t.dense[j], e)
			}
		}
		for p := r.parent; p != models.NullEntity; p = t.records[p].parent {
			descendants[p]++
		}
	}

	alive := 0
	for e := 1; e < len(t.records); e++ {
		r := &t.records[e]
		if !r.alive {
			continue
		}
		alive++
		if descendants[models.Entity(e)] != r.childCount {
			return errors.Wrapf(ErrInvariantBroken, "entity %d counts %d descendants, has %d",
				e, r.childCount, descendants[models.Entity(e)])
		}
	}
	if alive != len(t.dense) {
		return errors.Wrapf(ErrInvariantBroken, "%d live records, %d dense entries", alive, len(t.dense))
	}
	return nil
}
