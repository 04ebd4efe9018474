// Package channel implements CSP channels for scheduled tasks: an
// optionally bounded FIFO exchange point with blocking push and pull, close
// propagation to blocked waiters, and Select over pending operations.
//
// A channel without a buffer is a rendezvous point: a push waits for a pull
// and the other way round. A buffered channel of capacity k accepts k values
// before producers block, and receivers block only while the buffer is empty.
//
// Closing a channel fails every blocked producer with a *ClosedError (their
// values are discarded, never delivered). Values already in the buffer are
// still handed out; once it is empty, pulls fail with a *ClosedError too.
package channel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/OCAP2/csp/internal/queue"
	"github.com/OCAP2/csp/pkg/future"
)

var channelSeq atomic.Uint64

// Sender provides write access to a channel.
type Sender[T any] interface {
	Push(ctx context.Context, v T) error
	TryPush(v T) error
	Close()
}

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Pull(ctx context.Context) (T, error)
	TryPull() (T, error)
	Size() (int, bool)
}

// Endpoint is the type-erased view of a channel, as returned by Select.
type Endpoint interface {
	Name() string
	Size() (int, bool)
	Full() bool
	Closed() bool
	Close()
	Stats() Stats
}

// Stats is a point-in-time snapshot of a channel.
type Stats struct {
	Name             string `json:"name"`
	Buffered         bool   `json:"buffered"`
	Size             int    `json:"size"`
	Capacity         int    `json:"capacity"`
	PendingProducers int    `json:"pendingProducers"`
	PendingReceivers int    `json:"pendingReceivers"`
	Closed           bool   `json:"closed"`
}

// Channel is a CSP channel carrying values of type T. It is safe for use by
// any number of goroutines or executor tasks.
type Channel[T any] struct {
	name   string
	buf    *queue.Ring[T] // nil when unbuffered
	sched  future.Scheduler
	logger Logger
	instr  *instruments

	mu     sync.Mutex
	recvq  waitq[T]
	sendq  waitq[T]
	closed bool
}

// New creates a channel. Without options the channel is unbuffered.
func New[T any](opts ...Option) (*Channel[T], error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.buffered && cfg.capacity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, cfg.capacity)
	}

	ch := &Channel[T]{
		name:   cfg.name,
		sched:  cfg.scheduler,
		logger: cfg.logger,
		instr:  loadInstruments(),
	}
	if ch.name == "" {
		ch.name = fmt.Sprintf("chan-%d", channelSeq.Add(1))
	}
	if ch.sched == nil {
		ch.sched = future.Goroutines{}
	}
	if ch.logger == nil {
		ch.logger = nopLogger{}
	}
	if cfg.buffered && cfg.capacity > 0 {
		ch.buf = queue.NewRing[T](cfg.capacity)
	}

	return ch, nil
}

// NewUnbuffered creates a rendezvous channel.
func NewUnbuffered[T any](opts ...Option) *Channel[T] {
	return Must(New[T](opts...))
}

// NewBuffered creates a channel with a buffer of size slots.
func NewBuffered[T any](size int, opts ...Option) (*Channel[T], error) {
	return New[T](append(opts, Buffered(size))...)
}

// Must panics if err is non-nil and returns ch otherwise.
func Must[T any](ch *Channel[T], err error) *Channel[T] {
	if err != nil {
		panic(err)
	}
	return ch
}

// Name returns the channel's name.
func (ch *Channel[T]) Name() string {
	return ch.name
}

// Push delivers v, suspending until a receiver takes it, buffer space is
// available, the channel is closed, or ctx ends. A push on a closed channel
// fails immediately with a *ClosedError.
func (ch *Channel[T]) Push(ctx context.Context, v T) error {
	_, err := ch.StartPush(v).Wait(ctx)
	return err
}

// Pull receives the next value, suspending until one is available, the
// channel is closed and drained, or ctx ends.
func (ch *Channel[T]) Pull(ctx context.Context) (T, error) {
	return ch.StartPull().Wait(ctx)
}

// StartPush initiates a push without suspending and returns the pending
// operation. The operation has already completed if a receiver was waiting,
// the value fit into the buffer, or the channel was closed.
func (ch *Channel[T]) StartPush(v T) *Op[T] {
	op := &Op[T]{ch: ch, kind: opPush, value: v, fut: future.New[T]()}

	ch.mu.Lock()
	outcome := ch.push(op)
	ch.mu.Unlock()

	ch.instr.recordPush(ch.name, outcome)
	return op
}

// StartPull initiates a pull without suspending and returns the pending
// operation.
func (ch *Channel[T]) StartPull() *Op[T] {
	op := &Op[T]{ch: ch, kind: opPull, fut: future.New[T]()}

	ch.mu.Lock()
	outcome := ch.pull(op)
	ch.mu.Unlock()

	ch.instr.recordPull(ch.name, outcome)
	return op
}

// push performs exactly one of: pairing with a waiting receiver, appending
// to the buffer, or queueing the producer. ch.mu must be held.
func (ch *Channel[T]) push(op *Op[T]) string {
	if ch.closed {
		op.complete(op.value, ch.closedErr())
		return outcomeClosed
	}
	if r := ch.recvq.dequeue(); r != nil {
		r.complete(op.value, nil)
		op.complete(op.value, nil)
		return outcomePaired
	}
	if ch.buf != nil && ch.buf.PushBack(op.value) {
		op.complete(op.value, nil)
		return outcomeBuffered
	}
	ch.sendq.enqueue(op)
	return outcomeSuspended
}

// pull takes the next value from the buffer or a waiting producer, or queues
// the receiver. ch.mu must be held.
func (ch *Channel[T]) pull(op *Op[T]) string {
	if v, ok := ch.take(); ok {
		op.complete(v, nil)
		if ch.buf != nil {
			return outcomeBuffered
		}
		return outcomePaired
	}
	if ch.closed {
		var zero T
		op.complete(zero, ch.closedErr())
		return outcomeClosed
	}
	ch.recvq.enqueue(op)
	return outcomeSuspended
}

// take removes the next deliverable value without queueing anything.
// For a buffered channel the slot freed by the pop is refilled from the
// oldest waiting producer, which is then released. ch.mu must be held.
func (ch *Channel[T]) take() (T, bool) {
	if ch.buf != nil {
		v, ok := ch.buf.PopFront()
		if !ok {
			return v, false
		}
		if p := ch.sendq.dequeue(); p != nil {
			ch.buf.PushBack(p.value)
			p.complete(p.value, nil)
		}
		return v, true
	}
	if p := ch.sendq.dequeue(); p != nil {
		p.complete(p.value, nil)
		return p.value, true
	}
	var zero T
	return zero, false
}

// TryPush delivers v only if that is possible without suspending. It returns
// ErrFull otherwise, or a *ClosedError if the channel is closed.
func (ch *Channel[T]) TryPush(v T) error {
	ch.mu.Lock()
	var err error
	outcome := outcomeFull
	switch {
	case ch.closed:
		err, outcome = ch.closedErr(), outcomeClosed
	default:
		if r := ch.recvq.dequeue(); r != nil {
			r.complete(v, nil)
			outcome = outcomePaired
		} else if ch.buf != nil && ch.buf.PushBack(v) {
			outcome = outcomeBuffered
		} else {
			err = ErrFull
		}
	}
	ch.mu.Unlock()

	ch.instr.recordPush(ch.name, outcome)
	return err
}

// TryPull receives a value only if one is available without suspending. It
// returns ErrEmpty otherwise, or a *ClosedError once the channel is closed
// and drained.
func (ch *Channel[T]) TryPull() (T, error) {
	ch.mu.Lock()
	v, ok := ch.take()
	closed := ch.closed
	ch.mu.Unlock()

	switch {
	case ok && ch.buf != nil:
		ch.instr.recordPull(ch.name, outcomeBuffered)
		return v, nil
	case ok:
		ch.instr.recordPull(ch.name, outcomePaired)
		return v, nil
	case closed:
		ch.instr.recordPull(ch.name, outcomeClosed)
		return v, ch.closedErr()
	default:
		ch.instr.recordPull(ch.name, outcomeEmpty)
		return v, ErrEmpty
	}
}

// Close closes the channel. Blocked producers fail with a *ClosedError and
// their values are dropped. Buffered values go to blocked receivers first,
// oldest to oldest; receivers left over fail with a *ClosedError.
//
// Close is idempotent: closing a closed channel does nothing.
func (ch *Channel[T]) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		ch.logger.Debug("close on closed channel ignored", "channel", ch.name)
		return
	}
	ch.closed = true
	closedErr := ch.closedErr()

	var dropped, drained, failed int
	for p := ch.sendq.dequeue(); p != nil; p = ch.sendq.dequeue() {
		p.complete(p.value, closedErr)
		dropped++
	}
	if ch.buf != nil {
		for !ch.buf.Empty() {
			r := ch.recvq.dequeue()
			if r == nil {
				break
			}
			v, _ := ch.buf.PopFront()
			r.complete(v, nil)
			drained++
		}
	}
	var zero T
	for r := ch.recvq.dequeue(); r != nil; r = ch.recvq.dequeue() {
		r.complete(zero, closedErr)
		failed++
	}
	ch.mu.Unlock()

	ch.instr.recordClose(ch.name)
	ch.logger.Debug("channel closed", "channel", ch.name,
		"droppedProducers", dropped, "drainedReceivers", drained, "failedReceivers", failed)
}

// Closed reports whether Close has been called.
func (ch *Channel[T]) Closed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// Size returns the number of buffered values and true, or 0 and false for
// an unbuffered channel, which has no buffer to measure. A channel built
// with Buffered(0) is unbuffered, so it also reports (0, false) and is never
// Full.
func (ch *Channel[T]) Size() (int, bool) {
	if ch.buf == nil {
		return 0, false
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.buf.Len(), true
}

// Full reports whether the buffer is at capacity. It is always false for an
// unbuffered channel.
func (ch *Channel[T]) Full() bool {
	if ch.buf == nil {
		return false
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.buf.Full()
}

// Len returns the number of buffered values; 0 for unbuffered channels.
func (ch *Channel[T]) Len() int {
	n, _ := ch.Size()
	return n
}

// Cap returns the buffer capacity; 0 for unbuffered channels.
func (ch *Channel[T]) Cap() int {
	if ch.buf == nil {
		return 0
	}
	return ch.buf.Cap()
}

// Stats returns a snapshot of the channel's state.
func (ch *Channel[T]) Stats() Stats {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	s := Stats{
		Name:             ch.name,
		Buffered:         ch.buf != nil,
		PendingProducers: ch.sendq.len(),
		PendingReceivers: ch.recvq.len(),
		Closed:           ch.closed,
	}
	if ch.buf != nil {
		s.Size = ch.buf.Len()
		s.Capacity = ch.buf.Cap()
	}
	return s
}

func (ch *Channel[T]) closedErr() error {
	return &ClosedError{Channel: ch.name}
}
