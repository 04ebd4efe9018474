package future

import "context"

// Scheduler suspends the current task until an Awaitable settles or ctx
// ends. It returns nil once a settled, and ctx.Err() otherwise.
//
// Implementations decide what "the current task" is: a goroutine, a task on
// a cooperative executor, or a step in a deterministic test harness.
type Scheduler interface {
	Suspend(ctx context.Context, a Awaitable) error
}

// TaskScheduler is a Scheduler that knows its own tasks. Owns reports
// whether ctx was handed to a task it runs.
type TaskScheduler interface {
	Scheduler
	Owns(ctx context.Context) bool
}

// Owner returns the first scheduler that owns ctx, or fallback when none
// does.
func Owner(ctx context.Context, fallback Scheduler, schedulers ...Scheduler) Scheduler {
	for _, s := range schedulers {
		if ts, ok := s.(TaskScheduler); ok && ts.Owns(ctx) {
			return ts
		}
	}
	if fallback == nil {
		return Goroutines{}
	}
	return fallback
}

// Goroutines is the default Scheduler. It blocks the calling goroutine.
type Goroutines struct{}

// Suspend implements Scheduler.
func (Goroutines) Suspend(ctx context.Context, a Awaitable) error {
	select {
	case <-a.Done():
		return nil
	default:
	}
	select {
	case <-a.Done():
		return nil
	case <-ctx.Done():
		// Prefer the settled outcome when both happened.
		select {
		case <-a.Done():
			return nil
		default:
			return ctx.Err()
		}
	}
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(ctx context.Context, a Awaitable) error

// Suspend implements Scheduler.
func (f SchedulerFunc) Suspend(ctx context.Context, a Awaitable) error {
	return f(ctx, a)
}

// Await suspends on s until f settles and returns its result. If ctx ends
// first, the zero value and ctx.Err() are returned and f stays pending.
func Await[T any](ctx context.Context, s Scheduler, f *Future[T]) (T, error) {
	if s == nil {
		s = Goroutines{}
	}
	if err := s.Suspend(ctx, f); err != nil {
		var zero T
		return zero, err
	}
	return f.Result()
}
