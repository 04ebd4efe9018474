package channel

import (
	"context"
	"errors"
	"iter"
)

// All returns an iterator over the values pulled from ch. Iteration stops
// once the channel is closed and drained, or when ctx ends.
//
//	for v := range ch.All(ctx) {
//		...
//	}
func (ch *Channel[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := ch.Pull(ctx)
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Drain pulls until the channel is closed and returns everything received.
// If ctx ends first, the values received so far are returned with ctx.Err().
func (ch *Channel[T]) Drain(ctx context.Context) ([]T, error) {
	var out []T
	for {
		v, err := ch.Pull(ctx)
		if errors.Is(err, ErrClosed) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}
