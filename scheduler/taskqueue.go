// File: scheduler/taskqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// taskQueue is a mutex-protected intrusive FIFO threaded through
// taskRecord.nextInQueue — the "mutex-protected intrusive linked list"
// variant of a ready queue from spec.md §3/§4.7. It backs both the single
// global no-affinity queue and each worker's affine queue; all of those
// are genuinely multi-producer (any goroutine, including one running
// inside a task, may push to them), so a lock is the right tool here even
// though the per-worker deque alongside it is lock-free.
//
// Grounded on core/executor.hpp's TaskList / push_task / pop_task.

package scheduler

import "sync"

type taskQueue struct {
	mu   sync.Mutex
	pool *taskPool
	head TaskId
	tail TaskId
}

func newTaskQueue(pool *taskPool) *taskQueue {
	return &taskQueue{pool: pool, head: pool.invalidTaskId(), tail: pool.invalidTaskId()}
}

// push appends id to the tail. The caller must already hold a valid
// taskRecord for id (it was just returned by taskPool.add or taskPool.complete).
func (q *taskQueue) push(id TaskId) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec := q.pool.tasks.Get(id)
	rec.nextInQueue = q.pool.invalidTaskId()
	if q.tail == q.pool.invalidTaskId() {
		q.head, q.tail = id, id
		return
	}
	q.pool.tasks.Get(q.tail).nextInQueue = id
	q.tail = id
}

// pop removes and returns the head, or (invalid, false) if empty.
func (q *taskQueue) pop() (TaskId, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == q.pool.invalidTaskId() {
		return q.pool.invalidTaskId(), false
	}
	id := q.head
	next := q.pool.tasks.Get(id).nextInQueue
	q.head = next
	if q.head == q.pool.invalidTaskId() {
		q.tail = q.pool.invalidTaskId()
	}
	return id, true
}

// peekStamp returns the stamp of the head element without removing it.
func (q *taskQueue) peekStamp() (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == q.pool.invalidTaskId() {
		return 0, false
	}
	return q.pool.tasks.Get(q.head).stamp, true
}

func (q *taskQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head == q.pool.invalidTaskId()
}

// drainDropped erases every queued task without running it, via
// taskPool.dropQueued, used only at shutdown.
func (q *taskQueue) drainDropped() {
	for {
		id, ok := q.pop()
		if !ok {
			return
		}
		q.pool.dropQueued(id)
	}
}
