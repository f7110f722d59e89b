package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// stream runs next in a reader goroutine and hands every item to sink in a
// writer goroutine, with up to buffer items in flight. The first error
// from either side stops both.
func stream[T any](ctx context.Context, buffer int, next func() (T, bool, error), sink func(T) error) error {
	if buffer < 1 {
		buffer = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	items := make(chan T, buffer)

	g.Go(func() error {
		defer close(items)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, ok, err := next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			select {
			case items <- v:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for v := range items {
			if err := sink(v); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
