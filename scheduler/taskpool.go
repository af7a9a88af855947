// File: scheduler/taskpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// taskPool owns the dependency graph: tasks and the forward adjacency list
// of "who depends on me" edges (dependents). add() and complete() each run
// under a single critical section, exactly like core/executor.cpp's
// add_task/complete — the scheduling decision for a task that becomes
// ready is made while still holding the pool's lock, never after releasing
// it, so a predecessor finishing concurrently with a sibling add() can
// never be missed or double-counted.
//
// Grounded on core/executor.hpp / core/executor.cpp (Task, Dependent,
// TaskList, add_task, complete) and core/stable_id_vector.hpp (the slot
// allocator backing both the task and dependent tables, here
// internal/stableid.Pool).

package scheduler

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/driftwood-rt/taskgraph/internal/stableid"
)

// TaskId identifies a live, in-flight task. The zero value is not reserved
// and may name a live task; the "no task" sentinel is the task pool's
// invalid handle, which Submit returns alongside every error.
type TaskId = stableid.Handle

type dependentId = stableid.Handle

const (
	taskIndexBits      = 20
	dependentIndexBits = 20
)

// taskRecord is the Task of core/executor.hpp: a closure plus its place in
// the dependency graph and in whichever ready queue currently holds it.
type taskRecord struct {
	closure        func()
	nextInQueue    TaskId
	firstDependent dependentId
	unmetDeps      uint32
	affinity       WorkerId
	stamp          uint64
}

// dependentRecord is one edge "predecessor -> successor" in the forward
// adjacency list threaded off a task's firstDependent field.
type dependentRecord struct {
	to   TaskId
	next dependentId
}

type taskPool struct {
	mu         sync.Mutex
	tasks      *stableid.Pool[taskRecord]
	dependents *stableid.Pool[dependentRecord]
}

func newTaskPool(maxTasks, maxDependents int) *taskPool {
	return &taskPool{
		tasks:      stableid.New[taskRecord](maxTasks, taskIndexBits),
		dependents: stableid.New[dependentRecord](maxDependents, dependentIndexBits),
	}
}

func (tp *taskPool) invalidTaskId() TaskId { return tp.tasks.Invalid() }

func (tp *taskPool) len() int {
	return tp.tasks.Len()
}

// add interns a new task, wires it to its (validated) predecessors, and —
// if it starts with zero unmet dependencies — invokes onReady while still
// holding the pool's lock, exactly as core/executor.cpp's add_task calls
// schedule() inline. Invalid or already-completed predecessor ids are
// silently ignored, matching spec.md's documented edge case: there is
// nothing left to wait on, so the edge is correctly not wired.
//
// A *valid* predecessor whose edge cannot be wired because the dependent
// table is exhausted is a different situation entirely: silently dropping
// it would let id become ready and run before that live predecessor
// signals completion, violating the happens-before guarantee spec.md §5/§8
// rests on. So that case rolls back every edge already spliced for this
// call (in reverse, unwinding each predecessor's dependent list back to
// its pre-call state) and the task record itself, and reports failure —
// the caller gets ErrPoolFull rather than a corrupted graph.
func (tp *taskPool) add(closure func(), affinity WorkerId, predecessors []TaskId, onReady func(TaskId)) (TaskId, bool) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	id, ok := tp.tasks.Emplace(taskRecord{
		closure:        closure,
		nextInQueue:    tp.tasks.Invalid(),
		firstDependent: tp.dependents.Invalid(),
		affinity:       affinity,
	})
	if !ok {
		return tp.tasks.Invalid(), false
	}

	rec := tp.tasks.Get(id)
	type edge struct {
		pred TaskId
		dep  dependentId
	}
	var spliced []edge
	for _, pred := range predecessors {
		if !tp.tasks.IsValid(pred) {
			continue
		}
		predRec := tp.tasks.Get(pred)
		depId, ok := tp.dependents.Emplace(dependentRecord{to: id, next: predRec.firstDependent})
		if !ok {
			for i := len(spliced) - 1; i >= 0; i-- {
				e := spliced[i]
				tp.tasks.Get(e.pred).firstDependent = tp.dependents.Get(e.dep).next
				tp.dependents.Erase(e.dep)
			}
			tp.tasks.Erase(id)
			return tp.tasks.Invalid(), false
		}
		predRec.firstDependent = depId
		rec.unmetDeps++
		spliced = append(spliced, edge{pred: pred, dep: depId})
	}

	if rec.unmetDeps == 0 && onReady != nil {
		onReady(id)
	}
	return id, true
}

// complete erases id and walks its dependent list, decrementing each
// successor's unmet-dependency count. Every successor that reaches zero is
// passed to onReady, still under the pool's lock. The eapache/queue ring
// is used as the scratch collector for the batch of newly-ready successors
// discovered while walking the list — the fan-out of a single completion
// is unbounded ahead of time, so a growable queue is the right shape here
// rather than a fixed-capacity ring.
func (tp *taskPool) complete(id TaskId, onReady func(TaskId)) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if !tp.tasks.IsValid(id) {
		return
	}
	rec := tp.tasks.Get(id)
	ready := queue.New()

	depId := rec.firstDependent
	for depId != tp.dependents.Invalid() {
		dep := tp.dependents.Get(depId)
		to, next := dep.to, dep.next
		if tp.tasks.IsValid(to) {
			toRec := tp.tasks.Get(to)
			toRec.unmetDeps--
			if toRec.unmetDeps == 0 {
				ready.Add(to)
			}
		}
		tp.dependents.Erase(depId)
		depId = next
	}
	tp.tasks.Erase(id)

	for ready.Length() > 0 {
		rid := ready.Peek().(TaskId)
		ready.Remove()
		if onReady != nil {
			onReady(rid)
		}
	}
}

// dropQueued erases id and frees its dependent-list nodes without walking
// them to signal successors. Used only at shutdown to reclaim slots held
// by tasks that were queued but never ran; per spec.md's documented
// tradeoff (see DESIGN.md), any successor waiting on a dropped task is
// left permanently pending rather than spuriously completed.
func (tp *taskPool) dropQueued(id TaskId) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if !tp.tasks.IsValid(id) {
		return
	}
	rec := tp.tasks.Get(id)
	depId := rec.firstDependent
	for depId != tp.dependents.Invalid() {
		dep := tp.dependents.Get(depId)
		next := dep.next
		tp.dependents.Erase(depId)
		depId = next
	}
	tp.tasks.Erase(id)
}
