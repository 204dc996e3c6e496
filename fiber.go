package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/nedma/taskscheduler/internal/stackalloc"
)

// fiberState mirrors spec.md §3's Fiber.state enumeration.
type fiberState int32

const (
	fiberFree fiberState = iota
	fiberExecuting
	fiberSuspended
)

// resumeMsg is what switch_to actually sends down a fiber's resumeCh.
// task is non-nil only on a fresh lease (worker.go step 2); a resume of
// an already-started fiber (after Yield or WaitGroup) carries only
// waitResult, which WaitGroup's blocked receive interprets, and which
// Yield's blocked receive ignores.
type resumeMsg struct {
	task       *TaskDesc
	worker     *workerThread
	waitResult bool
}

type outcomeKind int

const (
	outcomeFinished outcomeKind = iota
	outcomeYielded
	outcomeParked
)

// fiberOutcome is what a switch_to call gets back once the fiber
// relinquishes control, telling the scheduling loop what to do next
// (spec.md §4.5/§4.6).
type fiberOutcome struct {
	kind outcomeKind
}

// fiber is one pooled fiber: a dedicated goroutine (fiber.loop) whose own
// Go stack stands in for the native stack the spec describes, paired
// with a guard-paged scratch arena for oversized task payloads (see
// internal/stackalloc). switch_to is a synchronous send on resumeCh
// followed by a blocking receive on doneCh; see SPEC_FULL.md §0 for why
// this is the idiomatic Go translation of a fiber stack-swap.
type fiber struct {
	idx   int
	state atomic.Int32

	resumeCh chan resumeMsg
	doneCh   chan fiberOutcome

	arena *stackalloc.Arena

	// currentTask is the TaskDesc currently leased to this fiber, valid
	// from the moment loop() receives a fresh lease until the entry
	// function returns (outcomeFinished). It is read by the worker to
	// know which group to decrement - the worker's switchTo call site
	// for a *resumed* (yielded/parked) fiber no longer has the TaskDesc
	// to hand, since resumeMsg only carries one on first dispatch.
	currentTask *TaskDesc
}

func newFiber(idx int, stackSizeBytes int) (*fiber, error) {
	arena, err := stackalloc.New(stackSizeBytes)
	if err != nil {
		return nil, err
	}
	f := &fiber{
		idx:      idx,
		resumeCh: make(chan resumeMsg),
		doneCh:   make(chan fiberOutcome),
		arena:    arena,
	}
	f.state.Store(int32(fiberFree))
	go f.loop()
	return f, nil
}

// loop is the fiber's permanent goroutine. It waits for a fresh task
// lease, runs the task's entry function to completion (the function
// itself may block this same goroutine, zero or more times, inside
// Yield/WaitGroup), then reports finished and waits for its next lease.
func (f *fiber) loop() {
	for msg := range f.resumeCh {
		f.state.Store(int32(fiberExecuting))
		f.currentTask = msg.task
		ctx := &FiberContext{worker: msg.worker, fiber: f, task: msg.task}
		msg.task.Entry(ctx, msg.task.UserData)
		f.state.Store(int32(fiberFree))
		f.doneCh <- fiberOutcome{kind: outcomeFinished}
	}
}

// switchTo is the worker-side half of the stack-swap protocol: it hands
// msg to the fiber and blocks until the fiber relinquishes control
// (spec.md §4.1's switch_to).
func (f *fiber) switchTo(w *workerThread, msg resumeMsg) fiberOutcome {
	msg.worker = w
	f.resumeCh <- msg
	return <-f.doneCh
}

// yield is the fiber-side half of suspension point 1: report "yielded"
// and block until some worker resumes us.
func (f *fiber) yield(w *workerThread) {
	f.state.Store(int32(fiberSuspended))
	f.doneCh <- fiberOutcome{kind: outcomeYielded}
	<-f.resumeCh
	f.state.Store(int32(fiberExecuting))
}

// waitGroup is the fiber-side half of suspension point 2. If g is
// already complete - checked and, if not, registered-as-parked under a
// single lock inside g.park, so a concurrent completion can never be
// missed between the two (spec.md §5's "decrement-to-zero
// synchronizes-with the parking side's load") - it returns true without
// suspending at all (spec.md §4.5 step 1, and §8's idempotence
// property). Otherwise it reports "parked" and blocks until resumed -
// either by g's completion or by the timeout reaper.
func (f *fiber) waitGroup(w *workerThread, g *groupState, timeout time.Duration) bool {
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}
	if !g.park(f, deadline, hasDeadline) {
		return true
	}

	f.state.Store(int32(fiberSuspended))
	f.doneCh <- fiberOutcome{kind: outcomeParked}
	msg := <-f.resumeCh
	f.state.Store(int32(fiberExecuting))
	return msg.waitResult
}

// fiberPool is the pre-allocated, fixed-size pool of fibers (spec.md
// §4.3), grounded on the teacher's `availPs chan *P` free-list
// (toysched7.go). acquire blocks if the pool is empty - the system's
// backpressure mechanism against over-suspension; tryAcquire gives the
// worker's scheduling loop a bounded-wait alternative so a single
// permanently-suspended task cannot wedge an entire worker goroutine.
type fiberPool struct {
	free chan *fiber
	all  []*fiber
}

func newFiberPool(count, stackSizeBytes int) (*fiberPool, error) {
	p := &fiberPool{
		free: make(chan *fiber, count),
		all:  make([]*fiber, 0, count),
	}
	for i := 0; i < count; i++ {
		f, err := newFiber(i, stackSizeBytes)
		if err != nil {
			p.closeAll()
			return nil, err
		}
		p.all = append(p.all, f)
		p.free <- f
	}
	return p, nil
}

// acquire blocks until a fiber is available.
func (p *fiberPool) acquire() *fiber {
	return <-p.free
}

// tryAcquire blocks for at most timeout, returning false if none became
// available in time.
func (p *fiberPool) tryAcquire(timeout time.Duration) (*fiber, bool) {
	if timeout <= 0 {
		select {
		case f := <-p.free:
			return f, true
		default:
			return nil, false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-p.free:
		return f, true
	case <-t.C:
		return nil, false
	}
}

// release clears f's state to FREE and returns it to the pool.
func (p *fiberPool) release(f *fiber) {
	f.state.Store(int32(fiberFree))
	p.free <- f
}

func (p *fiberPool) closeAll() {
	for _, f := range p.all {
		close(f.resumeCh)
		_ = f.arena.Release()
	}
}
