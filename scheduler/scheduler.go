// File: scheduler/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduler orchestrates N workers over a shared taskPool: submission
// interns a task and, once its dependencies are satisfied, pushes it onto
// either the global no-affinity queue or a specific worker's affine
// queue. Close/CloseAndWait implement the documented shutdown contract —
// no new submissions are admitted once closed, and in-flight work always
// runs to completion.
//
// Grounded on core/executor.hpp/.cpp (Scheduler-equivalent add_task /
// schedule / stop / close_and_wait) and proto/scheduler.hpp/.cpp (the
// worker loop, Pulse-based parking). internal/waitcounter.WaitCounter
// backs the "block until every worker has exited" half of shutdown,
// matching core/blocking_counter.hpp's documented use (a).

package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/driftwood-rt/taskgraph/api"
	"github.com/driftwood-rt/taskgraph/internal/waitcounter"
)

// Scheduler is a fixed-size pool of worker goroutines executing a
// dependency graph of submitted closures.
type Scheduler struct {
	cfg Config

	pool   *taskPool
	global *taskQueue
	stamp  atomic.Uint64

	workers []*worker

	mu     sync.Mutex
	closed bool

	workersDone *waitcounter.WaitCounter
}

// NewScheduler constructs a Scheduler per cfg and starts cfg.NumWorkers
// worker goroutines immediately; they park on their Pulse until work
// arrives. Use Submit to hand it work, and Close/CloseAndWait to shut it
// down, or Run as all-in-one sugar for the common "one root task" case.
func NewScheduler(cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	pool := newTaskPool(cfg.MaxTasks, cfg.MaxDependents)

	s := &Scheduler{
		cfg:         cfg,
		pool:        pool,
		global:      newTaskQueue(pool),
		workersDone: waitcounter.New(),
	}

	s.workers = make([]*worker, cfg.NumWorkers)
	for i := range s.workers {
		s.workers[i] = newWorker(s, WorkerId(i))
	}
	s.workersDone.Add(uint32(cfg.NumWorkers))
	for _, w := range s.workers {
		go w.loop()
	}
	return s
}

// Submit interns closure as a new task depending on predecessors, with the
// given affinity (NoAffinity to let any worker run it), and returns its
// handle. closure may itself call Submit (on a *Context, or directly on
// the Scheduler) to build out a dependency graph recursively — this is
// the expected way of building fan-out, not an edge case.
//
// Returns ErrInvalidWorker if affinity names a worker outside
// [0, NumWorkers), ErrSchedulerClosed if Close has already been called,
// or ErrPoolFull if MaxTasks in-flight tasks are already outstanding, or
// if a live predecessor's edge could not be wired because MaxDependents
// is exhausted — in the latter case closure is not interned at all rather
// than being run without waiting on that predecessor. A predecessor id
// that is no longer valid (already completed, or never valid) is silently
// ignored, per the documented InvalidPredecessor behavior — the new task
// simply does not wait on it.
func (s *Scheduler) Submit(closure func(), predecessors []TaskId, affinity WorkerId) (TaskId, error) {
	if affinity != NoAffinity && int(affinity) >= len(s.workers) {
		return s.pool.invalidTaskId(), ErrInvalidWorker
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.pool.invalidTaskId(), ErrSchedulerClosed
	}
	id, ok := s.pool.add(closure, affinity, predecessors, s.scheduleReady)
	s.mu.Unlock()

	if !ok {
		return s.pool.invalidTaskId(), ErrPoolFull
	}
	return id, nil
}

// scheduleReady assigns a task's stamp and pushes it onto the global
// queue (no-affinity, external origin) or the named worker's affine
// queue. It is the callback Submit hands to taskPool.add.
func (s *Scheduler) scheduleReady(id TaskId) {
	s.scheduleReadyFrom(id, nil)
}

// scheduleReadyFrom is scheduleReady plus an origin worker. When origin is
// non-nil (a worker discovering a newly-ready successor while completing
// one of its own tasks) and the successor carries no affinity, it is
// pushed onto origin's own deque instead of the global queue — that push
// always happens on origin's own goroutine, so it never violates the
// deque's single-owner contract, and it gives idle peers something to
// steal without contending the global mutex. If the deque is full the
// push falls back to the global queue.
func (s *Scheduler) scheduleReadyFrom(id TaskId, origin *worker) {
	rec := s.pool.tasks.Get(id)
	rec.stamp = s.stamp.Add(1)

	if rec.affinity == NoAffinity {
		if origin != nil && origin.deque.Push(id) {
			for _, w := range s.workers {
				if w != origin {
					w.pulse.Pulse()
				}
			}
			return
		}
		s.global.push(id)
		for _, w := range s.workers {
			w.pulse.Pulse()
		}
		return
	}
	w := s.workers[rec.affinity]
	w.affine.push(id)
	w.pulse.Pulse()
}

// Run submits root (bound to worker 0's context) and blocks until the
// scheduler's workers have all exited — typically because root, or a task
// it transitively submits, eventually calls Context.Stop.
func (s *Scheduler) Run(root func(ctx *Context)) {
	ctx0 := s.contextFor(0)
	s.Submit(func() { root(ctx0) }, nil, 0)
	s.workersDone.WaitAndDisable()
}

// Close stops admitting new submissions. Tasks already running continue
// to completion; tasks still sitting in a ready queue when the owning
// worker notices the closed scheduler are dropped without being run (see
// DESIGN.md for the consequences for their successors).
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	for _, w := range s.workers {
		w.pulse.Pulse()
	}
}

// CloseAndWait calls Close, then blocks until every worker goroutine has
// exited.
func (s *Scheduler) CloseAndWait() {
	s.Close()
	s.workersDone.WaitAndDisable()
}

// Shutdown implements api.GracefulShutdown.
func (s *Scheduler) Shutdown() error {
	s.CloseAndWait()
	return nil
}

// Stats reports a point-in-time snapshot of scheduler occupancy.
type Stats struct {
	NumWorkers    int
	TasksInFlight int
}

// Stats returns a snapshot; safe to call concurrently with Submit.
func (s *Scheduler) Stats() Stats {
	return Stats{
		NumWorkers:    len(s.workers),
		TasksInFlight: s.pool.len(),
	}
}

// executorAdapter presents a Scheduler as an api.Executor for callers that
// just want "submit a nullary function, no dependency graph" semantics.
type executorAdapter struct{ s *Scheduler }

// AsExecutor adapts s to the api.Executor contract: Submit enqueues task
// with no predecessors and no affinity; Resize is not supported since a
// Scheduler's worker count is fixed at construction.
func (s *Scheduler) AsExecutor() api.Executor { return executorAdapter{s} }

func (e executorAdapter) Submit(task func()) error {
	_, err := e.s.Submit(task, nil, NoAffinity)
	return err
}

func (e executorAdapter) NumWorkers() int { return len(e.s.workers) }

func (e executorAdapter) Resize(newCount int) {
	e.s.cfg.Logger.Printf("taskgraph: Resize(%d) ignored: worker count is fixed at construction", newCount)
}
