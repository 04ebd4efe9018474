// Package patterns holds the classic CSP programs built on pkg/channel:
// generators, fan-in through Select, a daisy chain of relays and a
// multi-producer drain. Each runs on a Runtime, either the cooperative
// executor or plain goroutines.
package patterns

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/OCAP2/csp/pkg/channel"
	"github.com/OCAP2/csp/pkg/executor"
	"github.com/OCAP2/csp/pkg/future"
)

// Runtime starts tasks and suspends them on blocked channel operations.
// *executor.Executor implements it.
type Runtime interface {
	Go(fn executor.TaskFunc)
	future.Scheduler
}

// Goroutines is a Runtime that runs every task on its own goroutine, tied
// together by an errgroup.
type Goroutines struct {
	ctx   context.Context
	group *errgroup.Group
}

// NewGoroutines returns a goroutine Runtime. The context handed to tasks is
// canceled as soon as one of them fails.
func NewGoroutines(ctx context.Context) *Goroutines {
	g, ctx := errgroup.WithContext(ctx)
	return &Goroutines{ctx: ctx, group: g}
}

// Go implements Runtime.
func (r *Goroutines) Go(fn executor.TaskFunc) {
	r.group.Go(func() error {
		return fn(r.ctx)
	})
}

// Suspend implements future.Scheduler.
func (r *Goroutines) Suspend(ctx context.Context, a future.Awaitable) error {
	return future.Goroutines{}.Suspend(ctx, a)
}

// Wait blocks until every task has returned and reports the first error.
func (r *Goroutines) Wait() error {
	return r.group.Wait()
}

func newChannel[T any](rt Runtime, name string, capacity int) *channel.Channel[T] {
	return channel.Must(channel.New[T](
		channel.WithName(name),
		channel.WithScheduler(rt),
		channel.Buffered(capacity),
	))
}
