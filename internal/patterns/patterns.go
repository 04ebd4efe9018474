package patterns

import (
	"context"
	"errors"
	"fmt"

	"github.com/OCAP2/csp/pkg/channel"
	"github.com/OCAP2/csp/pkg/future"
)

// Generator starts a task that pushes "<msg> <n>" for n in [0, count) and
// then closes the returned channel.
func Generator(rt Runtime, msg string, count int) *channel.Channel[string] {
	out := newChannel[string](rt, "gen-"+msg, 0)
	rt.Go(func(ctx context.Context) error {
		defer out.Close()
		for i := 0; i < count; i++ {
			if err := out.Push(ctx, fmt.Sprintf("%s %d", msg, i)); err != nil {
				return fmt.Errorf("generator %s: %w", msg, err)
			}
		}
		return nil
	})
	return out
}

// FanIn starts a task that forwards every value from the inputs to the
// returned channel as soon as it arrives, whichever input it comes from.
// The output is closed once every input is closed.
func FanIn[T any](rt Runtime, inputs ...*channel.Channel[T]) *channel.Channel[T] {
	out := newChannel[T](rt, "fanin", 0)
	rt.Go(func(ctx context.Context) error {
		defer out.Close()

		open := append([]*channel.Channel[T](nil), inputs...)
		for len(open) > 0 {
			ops := make([]*channel.Op[T], len(open))
			cases := make([]channel.Case, len(open))
			for i, in := range open {
				ops[i] = in.StartPull()
				cases[i] = ops[i]
			}

			sel, err := channel.Select(ctx, cases...)
			if err != nil {
				return fmt.Errorf("fan-in select: %w", err)
			}

			// The winner comes first; a loser that completed before it
			// could be retracted still carries a value.
			var closed []int
			for _, i := range winnerFirst(sel.Index, len(ops)) {
				v, err := ops[i].Result()
				switch {
				case err == nil:
					if err := out.Push(ctx, v); err != nil {
						return fmt.Errorf("fan-in forward: %w", err)
					}
				case errors.Is(err, channel.ErrClosed):
					closed = append(closed, i)
				}
			}
			open = without(open, closed)
		}
		return nil
	})
	return out
}

func winnerFirst(winner, n int) []int {
	order := make([]int, 0, n)
	order = append(order, winner)
	for i := 0; i < n; i++ {
		if i != winner {
			order = append(order, i)
		}
	}
	return order
}

func without[T any](chans []*channel.Channel[T], drop []int) []*channel.Channel[T] {
	if len(drop) == 0 {
		return chans
	}
	skip := make(map[int]bool, len(drop))
	for _, i := range drop {
		skip[i] = true
	}
	kept := chans[:0:0]
	for i, ch := range chans {
		if !skip[i] {
			kept = append(kept, ch)
		}
	}
	return kept
}

// DaisyChain links n relay tasks, each pulling from its right neighbour and
// pushing one more to its left, then feeds seed in at the right end. The
// returned future resolves with the value that reaches the left end,
// seed+n.
func DaisyChain(rt Runtime, n, seed int) *future.Future[int] {
	result := future.New[int]()

	leftmost := newChannel[int](rt, "chain-0", 0)
	left := leftmost
	for i := 0; i < n; i++ {
		l, r := left, newChannel[int](rt, fmt.Sprintf("chain-%d", i+1), 0)
		rt.Go(func(ctx context.Context) error {
			v, err := r.Pull(ctx)
			if err != nil {
				return err
			}
			return l.Push(ctx, v+1)
		})
		left = r
	}
	rightmost := left

	rt.Go(func(ctx context.Context) error {
		return rightmost.Push(ctx, seed)
	})
	rt.Go(func(ctx context.Context) error {
		v, err := leftmost.Pull(ctx)
		if err != nil {
			result.Fail(err)
			return err
		}
		result.Resolve(v)
		return nil
	})
	return result
}

// DrainResult is what Drain collected.
type DrainResult struct {
	Values []int
	Data   channel.Stats
}

// Drain runs producers tasks that each push perProducer distinct values
// into one channel with the given buffer capacity. Every producer reports
// completion on a signal channel; a listener closes the data channel after
// the last report, and a consumer collects everything until the close.
func Drain(rt Runtime, producers, perProducer, capacity int) *future.Future[DrainResult] {
	result := future.New[DrainResult]()
	data := newChannel[int](rt, "drain-data", capacity)
	done := newChannel[int](rt, "drain-done", 0)

	for p := 0; p < producers; p++ {
		rt.Go(func(ctx context.Context) error {
			for i := 0; i < perProducer; i++ {
				if err := data.Push(ctx, p*perProducer+i); err != nil {
					return fmt.Errorf("producer %d: %w", p, err)
				}
			}
			return done.Push(ctx, p)
		})
	}

	rt.Go(func(ctx context.Context) error {
		for i := 0; i < producers; i++ {
			if _, err := done.Pull(ctx); err != nil {
				return fmt.Errorf("listener: %w", err)
			}
		}
		done.Close()
		data.Close()
		return nil
	})

	rt.Go(func(ctx context.Context) error {
		values, err := data.Drain(ctx)
		if err != nil {
			result.Fail(err)
			return fmt.Errorf("consumer: %w", err)
		}
		result.Resolve(DrainResult{Values: values, Data: data.Stats()})
		return nil
	})
	return result
}
