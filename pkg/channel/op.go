package channel

import (
	"container/list"
	"context"

	"github.com/OCAP2/csp/pkg/future"
)

type opKind uint8

const (
	opPush opKind = iota
	opPull
)

func (k opKind) String() string {
	if k == opPush {
		return "push"
	}
	return "pull"
}

// Op is an initiated push or pull. While it is blocked it sits in its
// channel's producer or receiver queue; it leaves the queue when it is
// paired, when the channel is closed, or when it is canceled.
//
// An Op may be waited on, polled, canceled, or handed to Select.
type Op[T any] struct {
	ch    *Channel[T]
	kind  opKind
	value T
	fut   *future.Future[T]

	// Guarded by ch.mu.
	elem  *list.Element
	group *selectGroup
	index int
}

// Channel returns the channel the operation was started on.
func (o *Op[T]) Channel() *Channel[T] {
	return o.ch
}

// Done is closed once the operation has completed or been canceled.
func (o *Op[T]) Done() <-chan struct{} {
	return o.fut.Done()
}

// Result returns the outcome without blocking, or ErrPending while the
// operation is still in flight. A pull yields the received value; a push
// yields the value it delivered.
func (o *Op[T]) Result() (T, error) {
	return o.fut.Result()
}

// Wait suspends on the channel's scheduler until the operation completes.
// If ctx ends first the operation is retracted, nothing is sent or consumed,
// and ctx.Err() is returned. If the operation completed before it could be
// retracted, that outcome is returned instead.
func (o *Op[T]) Wait(ctx context.Context) (T, error) {
	if err := o.ch.sched.Suspend(ctx, o.fut); err != nil {
		if o.Cancel() {
			var zero T
			return zero, err
		}
	}
	return o.fut.Result()
}

// Cancel retracts a pending operation from its channel and settles it with
// ErrCanceled. It reports false if the operation had already completed.
func (o *Op[T]) Cancel() bool {
	o.ch.mu.Lock()
	canceled := o.cancelLocked()
	o.ch.mu.Unlock()

	if canceled {
		o.ch.instr.recordCanceled(o.ch.name, o.kind)
	}
	return canceled
}

func (o *Op[T]) cancelLocked() bool {
	if o.fut.Settled() {
		return false
	}
	if o.kind == opPush {
		o.ch.sendq.remove(o)
	} else {
		o.ch.recvq.remove(o)
	}
	o.fut.Fail(ErrCanceled)
	return true
}

// claim reports whether the operation may still be completed. Operations
// armed by a Select can only complete if they win the select's claim.
func (o *Op[T]) claim() bool {
	if o.group == nil {
		return true
	}
	return o.group.claim()
}

// complete settles the operation and wakes its select, if any. The caller
// holds ch.mu and has already claimed the operation.
func (o *Op[T]) complete(v T, err error) {
	if err != nil {
		o.fut.Fail(err)
	} else {
		o.fut.Resolve(v)
	}
	if o.group != nil {
		o.group.fut.Resolve(o.index)
	}
}

// waitq is a FIFO of blocked operations. Each queued Op remembers its list
// element so it can be removed in O(1) without disturbing the others.
type waitq[T any] struct {
	l list.List
}

func (q *waitq[T]) enqueue(op *Op[T]) {
	op.elem = q.l.PushBack(op)
}

func (q *waitq[T]) remove(op *Op[T]) {
	if op.elem == nil {
		return
	}
	q.l.Remove(op.elem)
	op.elem = nil
}

// dequeue removes and returns the oldest operation that can still complete.
// Entries belonging to a select that has already been decided are dropped.
func (q *waitq[T]) dequeue() *Op[T] {
	for e := q.l.Front(); e != nil; e = q.l.Front() {
		op := q.l.Remove(e).(*Op[T])
		op.elem = nil
		if op.claim() {
			return op
		}
	}
	return nil
}

func (q *waitq[T]) len() int {
	return q.l.Len()
}
