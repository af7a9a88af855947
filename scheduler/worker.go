// File: scheduler/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// worker is one of the Scheduler's N goroutines. It drains its own
// lock-free deque, then its affine and the global mutex-protected queues
// (oldest stamp first), then tries to steal from every peer once before
// parking on its Pulse. Only the worker's own completion step ever
// pushes to its deque (always safe: that push happens on the worker's
// own goroutine, the deque's sole legitimate owner); external and
// recursive submissions always target the global or affine queue — see
// the note in SPEC_FULL.md §3 on why routing a submit call to "the
// currently running worker's own deque" would be unsafe once stealing
// can move a task to a different worker mid-flight.
//
// Grounded on proto/scheduler.hpp/.cpp's SchedulerNode::node_loop
// (drain-then-steal-then-park structure) and core/executor.cpp's
// pop_and_run (drop the lock before invoking the closure).

package scheduler

import (
	"runtime"

	"github.com/driftwood-rt/taskgraph/affinity"
	"github.com/driftwood-rt/taskgraph/internal/deque"
	"github.com/driftwood-rt/taskgraph/internal/pulse"
)

type worker struct {
	id     WorkerId
	sched  *Scheduler
	deque  *deque.Deque[TaskId]
	affine *taskQueue
	pulse  *pulse.Pulse
}

func newWorker(s *Scheduler, id WorkerId) *worker {
	return &worker{
		id:     id,
		sched:  s,
		deque:  deque.New[TaskId](1 << s.cfg.DequeCapacityBits),
		affine: newTaskQueue(s.pool),
		pulse:  pulse.New(),
	}
}

func (w *worker) loop() {
	defer w.sched.workersDone.Done(1)

	if w.sched.cfg.PinWorkers {
		runtime.LockOSThread()
		if err := affinity.SetAffinity(int(w.id) % runtime.NumCPU()); err != nil {
			w.sched.cfg.Logger.Printf("taskgraph: worker %d: pin failed: %v", w.id, err)
		}
	}

	for {
		if id, ok := w.drainLocal(); ok {
			w.run(id)
			continue
		}
		if id, ok := w.trySteal(); ok {
			w.run(id)
			continue
		}

		w.sched.mu.Lock()
		closed := w.sched.closed
		w.sched.mu.Unlock()
		if closed {
			// Once closed is visible, no further submission can ever
			// succeed (Submit re-checks the same flag under the same
			// mutex), but one may have landed in our own queues between
			// our drainLocal attempt above and this check. One more
			// drain closes that window before we give up the deque to
			// whatever peers remain.
			if id, ok := w.drainLocal(); ok {
				w.run(id)
				continue
			}
			w.shutdownDrain()
			return
		}
		w.pulse.Wait()
	}
}

// run executes id's closure (having already removed it from whichever
// queue held it) and then completes it, pushing any newly-ready
// successors. id is a POD handle that may have been carried through a
// race between a thief's Steal and the owner's contested Pop (see
// internal/deque) and, per spec.md §4.1/§4.3, is only proven live by
// IsValid at the point of use — not at the point it was retrieved from a
// queue or deque. A stale or already-recycled handle is dropped silently
// rather than dereferenced.
func (w *worker) run(id TaskId) {
	if !w.sched.pool.tasks.IsValid(id) {
		return
	}
	rec := w.sched.pool.tasks.Get(id)
	closure := rec.closure
	if closure != nil {
		closure()
	}
	w.sched.pool.complete(id, func(readyId TaskId) {
		w.sched.scheduleReadyFrom(readyId, w)
	})
}

// drainLocal tries this worker's own deque first (LIFO, owner-only), then
// its affine queue against the global queue, running whichever has the
// older stamp to keep approximate FIFO across queues.
func (w *worker) drainLocal() (TaskId, bool) {
	if id, ok := w.deque.Pop(); ok {
		return id, true
	}
	return w.pickQueued()
}

func (w *worker) pickQueued() (TaskId, bool) {
	as, aok := w.affine.peekStamp()
	gs, gok := w.sched.global.peekStamp()

	affineFirst := aok && (!gok || as <= gs)
	if affineFirst {
		if id, ok := w.affine.pop(); ok {
			return id, true
		}
		return w.sched.global.pop()
	}
	if gok {
		if id, ok := w.sched.global.pop(); ok {
			return id, true
		}
		return w.affine.pop()
	}
	return w.affine.pop()
}

// trySteal attempts one steal from every peer, starting at this+1 and
// wrapping around — a full rotation, matching spec.md's "after a full
// unsuccessful rotation they park" without needing a separate call-to-call
// rotation counter.
func (w *worker) trySteal() (TaskId, bool) {
	n := len(w.sched.workers)
	for i := 1; i < n; i++ {
		peer := w.sched.workers[(int(w.id)+i)%n]
		if id, ok := peer.deque.Steal(w.sched.cfg.StealTimeout); ok {
			return id, true
		}
	}
	return w.sched.pool.invalidTaskId(), false
}

// shutdownDrain reclaims the pool slots of tasks left in this worker's own
// queues once it has confirmed the scheduler is closed and nothing more
// is coming. Their successors, if any, are left permanently pending —
// see DESIGN.md.
func (w *worker) shutdownDrain() {
	for {
		id, ok := w.deque.Pop()
		if !ok {
			break
		}
		w.sched.pool.dropQueued(id)
	}
	w.affine.drainDropped()
}
