// Package future provides a one-shot deferred result and the scheduler
// capability used to suspend a task until such a result settles.
package future

import (
	"errors"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Future.
type State int32

const (
	Pending State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrPending is returned by Result while the future has not settled.
	ErrPending = errors.New("future pending")
	// ErrNilError is stored when Fail is called with a nil error.
	ErrNilError = errors.New("future failed with nil error")
)

// settleSeq orders settlements across all futures in the process.
var settleSeq atomic.Uint64

// Awaitable is the read side of a single-assignment slot.
type Awaitable interface {
	// Done is closed once the slot has settled.
	Done() <-chan struct{}
	// OnSettle registers fn to run once the slot settles. If it already
	// has, fn runs immediately on the calling goroutine.
	OnSettle(fn func())
}

// Future is a single-assignment slot with one writer and any number of
// readers. The zero value is not usable; call New.
//
// Callbacks registered with OnSettle run synchronously on the goroutine that
// settles the future, possibly while the writer holds its own locks. They
// must not block.
type Future[T any] struct {
	mu        sync.Mutex
	state     State
	value     T
	err       error
	seq       uint64
	done      chan struct{}
	callbacks []func()
}

// New returns a pending Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// ResolvedWith returns a Future already resolved with v.
func ResolvedWith[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// FailedWith returns a Future already failed with err.
func FailedWith[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Resolve settles the future with v. It reports false if the future had
// already settled.
func (f *Future[T]) Resolve(v T) bool {
	return f.settle(Resolved, v, nil)
}

// Fail settles the future with err. It reports false if the future had
// already settled.
func (f *Future[T]) Fail(err error) bool {
	if err == nil {
		err = ErrNilError
	}
	var zero T
	return f.settle(Failed, zero, err)
}

func (f *Future[T]) settle(state State, v T, err error) bool {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return false
	}
	f.state = state
	f.value = v
	f.err = err
	f.seq = settleSeq.Add(1)
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return true
}

// Done implements Awaitable.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// OnSettle implements Awaitable.
func (f *Future[T]) OnSettle(fn func()) {
	f.mu.Lock()
	if f.state == Pending {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn()
}

// State returns the current state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Settled reports whether the future is no longer pending.
func (f *Future[T]) Settled() bool {
	return f.State() != Pending
}

// Result returns the settled value and error without blocking. It returns
// ErrPending while the future has not settled.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Pending {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

// Seq returns the global settlement order of the future, or 0 while pending.
// A smaller sequence number settled earlier.
func (f *Future[T]) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}
