// Package executor runs tasks cooperatively on a single logical thread.
//
// Tasks are goroutines, but only one of them runs at any moment: the loop in
// Run hands a baton to a task and waits until the task finishes or suspends
// in Suspend. A suspended task becomes ready again when the Awaitable it waits
// on settles or its context ends. The Executor implements future.Scheduler,
// so channels created with channel.WithScheduler(exec) suspend tasks instead
// of blocking goroutines.
//
// Tasks must pass the context they were started with (or one derived from
// it) to blocking operations; that is how Suspend finds the calling task.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	infinity "github.com/Code-Hex/go-infinity-channel"

	"github.com/OCAP2/csp/internal/queue"
	"github.com/OCAP2/csp/pkg/future"
)

var (
	// ErrRunning is returned when Run or RunUntilIdle is called while the
	// loop is already running.
	ErrRunning = errors.New("executor already running")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("executor closed")
)

// TaskFunc is the body of a task.
type TaskFunc func(ctx context.Context) error

type taskKey struct{}

type task struct {
	id     uint64
	exec   *Executor
	fn     TaskFunc
	ctx    context.Context
	resume chan struct{}
}

// Executor is a cooperative single-threaded task runner.
type Executor struct {
	logger Logger
	instr  *instruments

	ready  *queue.Queue[*task]
	inbox  *infinity.Channel[TaskFunc]
	signal chan struct{}
	yield  chan struct{}

	nextID    atomic.Uint64
	live      atomic.Int64
	suspended atomic.Int64
	running   atomic.Bool

	inboxMu sync.RWMutex
	closed  bool

	errMu sync.Mutex
	errs  []error
}

// New creates an executor. Call Close when it is no longer needed to stop
// the inbox goroutine.
func New(opts ...Option) *Executor {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	e := &Executor{
		logger: cfg.logger,
		instr:  loadInstruments(),
		ready:  queue.New[*task](),
		inbox:  infinity.NewChannel[TaskFunc](),
		signal: make(chan struct{}, 1),
		yield:  make(chan struct{}),
	}
	if e.logger == nil {
		e.logger = nopLogger{}
	}
	return e
}

// Go schedules fn as a new task. It may be called from a running task or
// before Run.
func (e *Executor) Go(fn TaskFunc) {
	e.live.Add(1)
	e.schedule(e.newTask(fn))
}

// Submit schedules fn from any goroutine. The task is queued in an unbounded
// inbox and admitted by the loop on its next turn, so Submit never waits for
// the executor.
func (e *Executor) Submit(fn TaskFunc) error {
	e.inboxMu.RLock()
	defer e.inboxMu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	e.live.Add(1)
	e.inbox.In() <- fn
	e.wake()
	return nil
}

// Close stops accepting submitted tasks. Tasks already queued still run.
func (e *Executor) Close() {
	e.inboxMu.Lock()
	defer e.inboxMu.Unlock()
	if !e.closed {
		e.closed = true
		e.inbox.Close()
	}
}

func (e *Executor) newTask(fn TaskFunc) *task {
	t := &task{
		id:     e.nextID.Add(1),
		exec:   e,
		fn:     fn,
		resume: make(chan struct{}),
	}
	e.instr.recordTask()
	return t
}

func (e *Executor) schedule(t *task) {
	e.ready.Push(t)
	e.wake()
}

func (e *Executor) wake() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

// Run runs tasks until none is left or ctx ends. Tasks that are still
// suspended when ctx ends stay parked. The returned error joins the errors
// returned by tasks.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	e.logger.Debug("executor started", "tasks", e.live.Load())
	inbox := e.inbox.Out()
	for {
		e.admit()
		if t, ok := e.ready.Pop(); ok {
			e.step(ctx, t)
			continue
		}
		if e.live.Load() == 0 {
			e.logger.Debug("executor idle, no tasks left")
			return e.err()
		}
		select {
		case fn, ok := <-inbox:
			if !ok {
				inbox = nil
				continue
			}
			e.schedule(e.newTask(fn))
		case <-e.signal:
		case <-ctx.Done():
			e.logger.Debug("executor stopped", "suspended", e.suspended.Load(), "err", ctx.Err())
			return errors.Join(ctx.Err(), e.err())
		}
	}
}

// RunUntilIdle runs tasks until no task is ready to run and returns the
// number of tasks left suspended. It does not wait for timers or foreign
// goroutines, which makes it suitable for deterministic tests.
func (e *Executor) RunUntilIdle(ctx context.Context) (suspended int, err error) {
	if !e.running.CompareAndSwap(false, true) {
		return 0, ErrRunning
	}
	defer e.running.Store(false)

	for {
		if err := ctx.Err(); err != nil {
			return int(e.suspended.Load()), err
		}
		e.admit()
		t, ok := e.ready.Pop()
		if !ok {
			return int(e.suspended.Load()), e.err()
		}
		e.step(ctx, t)
	}
}

// admit moves every submitted task that has reached the inbox output onto
// the ready queue.
func (e *Executor) admit() {
	for e.inbox.Len() > 0 {
		fn, ok := <-e.inbox.Out()
		if !ok {
			return
		}
		e.schedule(e.newTask(fn))
	}
}

// step hands the baton to t and waits for it to come back.
func (e *Executor) step(ctx context.Context, t *task) {
	if t.ctx == nil {
		t.ctx = context.WithValue(ctx, taskKey{}, t)
		go e.start(t)
	}
	e.instr.recordStep()
	t.resume <- struct{}{}
	<-e.yield
}

func (e *Executor) start(t *task) {
	<-t.resume
	defer func() {
		if r := recover(); r != nil {
			e.fail(t, fmt.Errorf("task %d panicked: %v", t.id, r))
		}
		e.live.Add(-1)
		e.yield <- struct{}{}
	}()
	if err := t.fn(t.ctx); err != nil {
		e.fail(t, fmt.Errorf("task %d: %w", t.id, err))
	}
}

func (e *Executor) fail(t *task, err error) {
	e.logger.Error("task failed", "task", t.id, "err", err)
	e.errMu.Lock()
	e.errs = append(e.errs, err)
	e.errMu.Unlock()
}

func (e *Executor) err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return errors.Join(e.errs...)
}

// Suspend implements future.Scheduler. Called from a task of this executor,
// it parks the task and lets others run until a settles or ctx ends. Called
// from anywhere else, it blocks the calling goroutine.
func (e *Executor) Suspend(ctx context.Context, a future.Awaitable) error {
	t, ok := e.current(ctx)
	if !ok {
		return future.Goroutines{}.Suspend(ctx, a)
	}

	select {
	case <-a.Done():
		return nil
	default:
	}

	var once sync.Once
	wake := func() {
		once.Do(func() { e.schedule(t) })
	}
	a.OnSettle(wake)
	stop := context.AfterFunc(ctx, wake)
	defer stop()

	e.suspended.Add(1)
	e.yield <- struct{}{}
	<-t.resume
	e.suspended.Add(-1)

	select {
	case <-a.Done():
		return nil
	default:
		return ctx.Err()
	}
}

// Sleep suspends the calling task for d.
func (e *Executor) Sleep(ctx context.Context, d time.Duration) error {
	f := future.New[struct{}]()
	timer := time.AfterFunc(d, func() { f.Resolve(struct{}{}) })
	defer timer.Stop()
	return e.Suspend(ctx, f)
}

// Yield moves the calling task to the back of the ready queue, letting every
// task that is already ready run first. Outside a task it does nothing.
func (e *Executor) Yield(ctx context.Context) {
	t, ok := e.current(ctx)
	if !ok {
		return
	}
	e.schedule(t)
	e.yield <- struct{}{}
	<-t.resume
}

var _ future.TaskScheduler = (*Executor)(nil)

// Owns implements future.TaskScheduler.
func (e *Executor) Owns(ctx context.Context) bool {
	_, ok := e.current(ctx)
	return ok
}

func (e *Executor) current(ctx context.Context) (*task, bool) {
	t, ok := ctx.Value(taskKey{}).(*task)
	if !ok || t.exec != e {
		return nil, false
	}
	return t, true
}

// TaskID returns the id of the executor task ctx belongs to, if any.
func TaskID(ctx context.Context) (uint64, bool) {
	t, ok := ctx.Value(taskKey{}).(*task)
	if !ok {
		return 0, false
	}
	return t.id, true
}

// Live returns the number of tasks that have not finished.
func (e *Executor) Live() int {
	return int(e.live.Load())
}

// Suspended returns the number of tasks parked in Suspend.
func (e *Executor) Suspended() int {
	return int(e.suspended.Load())
}
