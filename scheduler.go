// Package scheduler implements a fiber-based work-stealing task
// scheduler for fine-grained parallelism, in the spirit of the original
// MT::TaskScheduler (Sergey Makeev / Vadim Slyusarev): a fixed pool of
// worker goroutines, each with its own work-stealing task queue, running
// short tasks on pooled "fibers" (goroutines parked on a channel
// handoff - see SPEC_FULL.md §0) so a task may suspend mid-execution to
// wait on a TaskGroup and resume later on any worker.
//
// Only one Scheduler is supported per process; nested schedulers are not
// supported (spec.md §9, Open Question (c)).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nedma/taskscheduler/internal/platform"
	"github.com/nedma/taskscheduler/internal/queue"
)

// stats holds scheduler-wide counters exposed for tests and diagnostics;
// not part of the external contract in spec.md §6, but useful evidence
// of fiber exhaustion (fiberWaits counts dispatch's fiber-acquire misses).
type stats struct {
	fiberWaits platform.Counter
}

// Scheduler is the global façade (spec.md §4.6): it constructs workers,
// publishes tasks into groups, tracks per-group outstanding counts,
// implements WaitGroup, and orchestrates shutdown.
type Scheduler struct {
	cfg Config
	log zerolog.Logger

	workers  []*workerThread
	groups   [MaxGroups]*groupState
	overflow *queue.LIFO[TaskDesc]

	fiberPool *fiberPool
	stats     stats

	cursorMu sync.Mutex
	cursor   int

	eg       *errgroup.Group
	egCtx    context.Context
	reaperWG sync.WaitGroup
	stopReap chan struct{}

	shutdownOnce sync.Once
	shutdown     bool
	shutdownMu   sync.Mutex
}

// New constructs a Scheduler per spec.md §6
// (`Scheduler.new(worker_count, fiber_count, stack_kb)`), starting its
// workers and its parked-fiber timeout reaper immediately.
func New(cfg Config) (*Scheduler, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:      cfg,
		log:      resolveLogger(cfg.Logger),
		overflow: queue.NewLIFO[TaskDesc](cfg.OverflowQueueSize),
		stopReap: make(chan struct{}),
	}
	for i := range s.groups {
		s.groups[i] = newGroupState()
	}

	fp, err := newFiberPool(cfg.FiberCount, cfg.StackSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("scheduler: construct fiber pool: %w", err)
	}
	s.fiberPool = fp

	s.eg, s.egCtx = errgroup.WithContext(context.Background())
	s.workers = make([]*workerThread, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		w := newWorkerThread(i, s)
		s.workers[i] = w
	}
	for _, w := range s.workers {
		w := w
		s.eg.Go(func() error {
			w.run()
			return nil
		})
	}

	s.reaperWG.Add(1)
	go s.reapLoop()

	s.log.Info().Int("workers", cfg.WorkerCount).Int("fibers", cfg.FiberCount).Msg("scheduler started")
	return s, nil
}

// group returns the groupState for id, which must already be validated.
func (s *Scheduler) group(id GroupID) *groupState {
	return s.groups[id]
}

// resolveGroup validates id (resolving AssignFromContext against the
// calling task, if any) and returns its groupState.
func (s *Scheduler) resolveGroup(id GroupID, callingTask *TaskDesc) (*groupState, error) {
	if id == AssignFromContext {
		if callingTask == nil {
			return nil, ErrAssignFromContextOutsideTask
		}
		id = callingTask.group
	}
	if !validGroupID(id) {
		return nil, ErrInvalidGroup
	}
	return s.groups[id], nil
}

// RunTasks enqueues descs into group, round-robin across workers,
// incrementing group's outstanding count and resetting its completion
// event before distributing (spec.md §4.6). It returns promptly: this is
// an enqueue-only call, never a wait.
//
// RunTasks itself has no notion of "the calling task" (it may be called
// from any goroutine), so group == AssignFromContext is rejected with
// ErrAssignFromContextOutsideTask. From inside a running task, submit
// through FiberContext.RunTasks, which resolves AssignFromContext to the
// task's own group. See scheduler_test.go's nested-wait scenario for the
// pattern.
func (s *Scheduler) RunTasks(group GroupID, descs []TaskDesc) error {
	s.shutdownMu.Lock()
	down := s.shutdown
	s.shutdownMu.Unlock()
	if down {
		return ErrShutdown
	}
	g, err := s.resolveGroup(group, nil)
	if err != nil {
		return err
	}
	if len(descs) == 0 {
		return nil
	}

	if g.outstanding.Add(int32(len(descs))) == int32(len(descs)) {
		// transitioned from 0 to positive: the event may still be set
		// from a prior completed batch - reset it (spec.md §3).
		g.completion.Reset()
	}

	for i := range descs {
		descs[i].group = group
	}

	for i, d := range descs {
		if !s.enqueueOne(d) {
			// Roll back the count for every task that never made it
			// into a queue, including this one, so outstanding stays
			// accurate - the ones already enqueued (0..i-1) will still
			// run and decrement themselves normally.
			remaining := len(descs) - i
			s.log.Error().Int("group", int(group)).Int("unsubmitted", remaining).
				Msg("queue and overflow both full; rejecting remainder of submission")
			g.outstanding.Add(-int32(remaining))
			return ErrQueueFull
		}
	}
	return nil
}

// enqueueOne places d on the next worker's queue (round robin), falling
// back to the scheduler-wide overflow queue if that worker's queue is
// full (DESIGN.md Open Question (a)). Returns false only if both are
// full.
func (s *Scheduler) enqueueOne(d TaskDesc) bool {
	s.cursorMu.Lock()
	idx := s.cursor
	s.cursor = (s.cursor + 1) % len(s.workers)
	s.cursorMu.Unlock()

	w := s.workers[idx]
	if w.taskQueue.Push(d) {
		w.wake.Set()
		return true
	}
	if s.overflow.Push(d) {
		// Nudge every worker; whichever is idle first will steal it.
		for _, w := range s.workers {
			w.wake.Set()
		}
		return true
	}
	return false
}

// completeTask decrements task's group's outstanding count, signalling
// completion and waking any parked fibers if it reaches zero (spec.md
// §4.5 step 4, §5's "task-return decrement-to-zero"). The decrement and
// the parked-list drain happen together, inside completeOne, under the
// same lock fiber.waitGroup's park call re-checks outstanding under -
// see group.go's completeOne/park doc comments for why that's required
// to avoid a lost wakeup.
func (s *Scheduler) completeTask(task TaskDesc) {
	g := s.groups[task.group]
	reachedZero, woken := g.completeOne()
	if !reachedZero {
		return
	}
	g.completion.Set()
	s.wakeParked(woken, true)
}

// wakeParked hands each already-drained parked fiber to a worker's ready
// queue, round robin, per DESIGN.md's Open Question (b).
func (s *Scheduler) wakeParked(woken []parkedFiber, result bool) {
	for _, p := range woken {
		s.resumeOnSomeWorker(p.f, result)
	}
}

func (s *Scheduler) resumeOnSomeWorker(f *fiber, result bool) {
	s.cursorMu.Lock()
	start := s.cursor
	s.cursor = (s.cursor + 1) % len(s.workers)
	s.cursorMu.Unlock()

	n := len(s.workers)
	for i := 0; i < n; i++ {
		w := s.workers[(start+i)%n]
		if w.readyQueue.pushBack(readyEntry{f: f, waitResult: result}) {
			w.wake.Set()
			return
		}
	}
	// Every worker's ready queue is full: block briefly and retry the
	// first worker rather than drop the fiber - a parked fiber must
	// always end up exactly one of {parked, ready, executing}
	// (spec.md §3's invariant), never silently lost.
	for !s.workers[start].readyQueue.pushBack(readyEntry{f: f, waitResult: result}) {
		time.Sleep(time.Millisecond)
	}
	s.workers[start].wake.Set()
}

// reapLoop periodically moves parked fibers whose wait_group deadline
// has elapsed back onto a worker's ready queue with a "timed out"
// result, per spec.md §4.5's timeout path.
func (s *Scheduler) reapLoop() {
	defer s.reaperWG.Done()
	ticker := time.NewTicker(s.cfg.ReaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopReap:
			return
		case now := <-ticker.C:
			for i := range s.groups {
				for _, p := range s.groups[i].reapExpired(now) {
					s.resumeOnSomeWorker(p.f, false)
				}
			}
		}
	}
}

// WaitGroup blocks the calling goroutine (not a fiber - call
// FiberContext.WaitGroup from inside a task instead) until group's
// outstanding count reaches zero or timeout elapses, per spec.md §6. A
// timeout <= 0 blocks indefinitely.
func (s *Scheduler) WaitGroup(group GroupID, timeout time.Duration) (bool, error) {
	g, err := s.resolveGroup(group, nil)
	if err != nil {
		return false, err
	}
	if g.Outstanding() <= 0 {
		return true, nil
	}
	if timeout <= 0 {
		g.completion.WaitForever()
		return true, nil
	}
	return g.completion.Wait(timeout), nil
}

// Shutdown signals every worker to exit its loop, joins them, stops the
// timeout reaper, and releases every pooled fiber's scratch arena. It
// asserts that every group's outstanding count is zero, per spec.md
// §4.6 ("asserts all groups have outstanding == 0").
func (s *Scheduler) Shutdown() error {
	var retErr error
	s.shutdownOnce.Do(func() {
		s.shutdownMu.Lock()
		s.shutdown = true
		s.shutdownMu.Unlock()

		for _, w := range s.workers {
			w.requestStop()
		}
		// errgroup.Group.Wait joins every worker goroutine, grounded on
		// the bigmachine exec package's use of errgroup for goroutine
		// orchestration (see DESIGN.md).
		_ = s.eg.Wait()

		close(s.stopReap)
		s.reaperWG.Wait()

		for i := range s.groups {
			if out := s.groups[i].Outstanding(); out != 0 {
				retErr = fmt.Errorf("scheduler: group %d has %d outstanding tasks at shutdown", i, out)
			}
		}

		s.fiberPool.closeAll()
		s.log.Info().Msg("scheduler stopped")
	})
	return retErr
}
