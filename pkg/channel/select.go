package channel

import (
	"context"
	"sync/atomic"

	"github.com/OCAP2/csp/pkg/future"
)

// Case is one branch of a Select. *Op[T] implements Case for every T.
type Case interface {
	arm(g *selectGroup, index int) (settled bool)
	disarm()
	seq() uint64
	outcome() (any, error)
	endpoint() Endpoint
	scheduler() future.Scheduler
	record(ctx context.Context)
}

// Selected describes the branch that won a Select.
type Selected struct {
	// Index is the winning case's position in the argument list.
	Index int
	// Channel is the winning case's channel.
	Channel Endpoint
	// Value is the received value for a pull, or the delivered value for a
	// push. It is the zero value of the element type when Err is set.
	Value any
	// Err is a *ClosedError if the branch resolved because its channel
	// closed.
	Err error
}

// selectGroup decides a select race. Exactly one claim succeeds: either a
// counterpart completing one of the armed operations, or the select itself
// stopping further winners.
type selectGroup struct {
	won atomic.Bool
	fut *future.Future[int]
}

func newSelectGroup() *selectGroup {
	return &selectGroup{fut: future.New[int]()}
}

func (g *selectGroup) claim() bool {
	return g.won.CompareAndSwap(false, true)
}

// Select waits until exactly one of the given operations completes and
// returns that branch. Every other operation still pending is retracted from
// its channel: a losing push is never delivered and a losing pull never
// consumes a value.
//
// If several operations complete in the same step, the one that completed
// first wins. Operations that had already completed before Select was
// called compete by completion order too. A loser that completed before it
// could be retracted keeps its result, available from the Op.
//
// A branch whose channel closes resolves with a *ClosedError in
// Selected.Err and can win like any other. If ctx ends before any branch
// completes, every operation is retracted and ctx.Err() is returned.
//
// Select parks on the scheduler that owns the calling task when one of the
// cases' channels has it, and on the first case's scheduler otherwise.
//
// An operation may take part in at most one Select.
func Select(ctx context.Context, cases ...Case) (Selected, error) {
	if len(cases) == 0 {
		return Selected{Index: -1}, ErrNoCases
	}

	g := newSelectGroup()
	settled := false
	for i, c := range cases {
		if c.arm(g, i) {
			settled = true
		}
	}

	if settled {
		// Something completed before it could be armed. Stop every armed
		// case from winning; if one already has, wait for it to settle so
		// the completion order below sees it.
		if !g.claim() {
			<-g.fut.Done()
		}
		return finish(ctx, cases, earliest(cases))
	}

	if err := suspender(ctx, cases).Suspend(ctx, g.fut); err != nil {
		if g.claim() {
			for _, c := range cases {
				c.disarm()
			}
			return Selected{Index: -1}, err
		}
		// A branch won while the context was ending. The winner settles
		// under its channel lock right after claiming, so this is brief.
		<-g.fut.Done()
	}

	winner, _ := g.fut.Result()
	return finish(ctx, cases, winner)
}

// earliest returns the index of the case that settled first.
func earliest(cases []Case) int {
	best := -1
	var bestSeq uint64
	for i, c := range cases {
		s := c.seq()
		if s == 0 {
			continue
		}
		if best < 0 || s < bestSeq {
			best, bestSeq = i, s
		}
	}
	return best
}

func finish(ctx context.Context, cases []Case, winner int) (Selected, error) {
	for i, c := range cases {
		if i != winner {
			c.disarm()
		}
	}

	c := cases[winner]
	c.record(ctx)
	v, err := c.outcome()
	return Selected{
		Index:   winner,
		Channel: c.endpoint(),
		Value:   v,
		Err:     err,
	}, nil
}

func (o *Op[T]) arm(g *selectGroup, index int) bool {
	o.ch.mu.Lock()
	defer o.ch.mu.Unlock()
	if o.fut.Settled() {
		return true
	}
	if o.group != nil {
		panic("channel: operation used in more than one Select")
	}
	o.group = g
	o.index = index
	return false
}

func (o *Op[T]) disarm() {
	o.Cancel()
}

func (o *Op[T]) seq() uint64 {
	return o.fut.Seq()
}

func (o *Op[T]) outcome() (any, error) {
	return o.fut.Result()
}

// suspender picks the scheduler owning the calling task, so a task selecting
// over channels of mixed schedulers parks on its own. Without an owner the
// first case's scheduler is used.
func suspender(ctx context.Context, cases []Case) future.Scheduler {
	scheds := make([]future.Scheduler, len(cases))
	for i, c := range cases {
		scheds[i] = c.scheduler()
	}
	return future.Owner(ctx, scheds[0], scheds...)
}

func (o *Op[T]) endpoint() Endpoint {
	return o.ch
}

func (o *Op[T]) scheduler() future.Scheduler {
	return o.ch.sched
}

func (o *Op[T]) record(ctx context.Context) {
	o.ch.instr.recordSelect(ctx, o.ch.name, o.kind)
}
