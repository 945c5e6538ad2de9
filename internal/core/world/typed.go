package world

import (
	"iter"

	"github.com/zeusync/ecscore/internal/core/models"
	"github.com/zeusync/ecscore/internal/core/registry"
)

// AddOf is Add for a type registered through registry.Register[T].
func AddOf[T any](w *World, e models.Entity, t models.TypeID) (*T, error) {
	ptr, err := w.Add(e, t)
	if err != nil {
		return nil, err
	}
	return registry.As[T](ptr), nil
}

func GetOf[T any](w *World, e models.Entity, t models.TypeID) *T {
	ptr := w.Get(e, t)
	if ptr == nil {
		return nil
	}
	return registry.As[T](ptr)
}

func EachOf[T any](w *World, t models.TypeID) iter.Seq2[models.Entity, *T] {
	return func(yield func(models.Entity, *T) bool) {
		for e, ptr := range w.Each(t) {
			if !yield(e, registry.As[T](ptr)) {
				return
			}
		}
	}
}
