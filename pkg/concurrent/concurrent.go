package concurrent

import (
	"context"

	"github.com/zeusync/ecscore/pkg/sequence"
	"golang.org/x/sync/errgroup"
)

// Concurrent runs action for every element of the iterator, at most limit at
// a time (limit <= 0 means unbounded). The context passed to action is
// cancelled as soon as one call fails; the first error is returned.
func Concurrent[T any](ctx context.Context, i *sequence.Iterator[T], limit int, action func(context.Context, T) error) error {
	group, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}

	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}
		if gctx.Err() != nil {
			break
		}
		group.Go(func() error {
			return action(gctx, value)
		})
	}

	return group.Wait()
}
