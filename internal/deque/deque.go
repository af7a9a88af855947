// File: internal/deque/deque.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WorkStealingDeque is a Chase-Lev-style single-owner/many-thief deque of
// POD handles. The owner pushes and pops at the tail (LIFO); thieves pop
// at the head (FIFO) through a short-timeout mutex shared with the owner's
// contested pop path.
//
// Grounded on proto/work_stealing_queue.hpp's WorkStealingQueue
// (unique_push/unique_pull/shared_pull) and the atomic sequence-number
// pattern from core/concurrency/lock_free_queue.go, adapted to the
// asymmetric owner/thief roles the source actually implements (rather than
// a fully symmetric MPMC ring).

package deque

import (
	"sync/atomic"
	"time"

	"github.com/driftwood-rt/taskgraph/internal/ring"
)

// Deque is a fixed-capacity work-stealing deque. Capacity is rounded up to
// a power of two; one slot is always left unused so a full ring is never
// mistaken for an empty one (documented tradeoff, see spec.md §9).
type Deque[T any] struct {
	buf  *ring.Ring[T]
	head atomic.Uint64
	tail atomic.Uint64
	mu   timedMutex
}

// New allocates a deque with the requested capacity (rounded up to a power
// of two).
func New[T any](capacity uint64) *Deque[T] {
	d := &Deque[T]{buf: ring.New[T](capacity)}
	d.mu.init()
	return d
}

// Push stores v at the tail. Owner-thread only. Returns false if full.
func (d *Deque[T]) Push(v T) bool {
	t := d.tail.Load()
	h := d.head.Load()
	if t >= h+d.buf.Cap()-1 {
		return false
	}
	d.buf.Set(t, v)
	d.tail.Store(t + 1)
	return true
}

// Pop removes and returns the most recently pushed element (LIFO).
// Owner-thread only.
func (d *Deque[T]) Pop() (T, bool) {
	var zero T
	t := d.tail.Load()
	if t == 0 {
		return zero, false
	}
	newTail := t - 1
	if newTail < d.head.Load() {
		return zero, false
	}

	d.tail.Store(newTail)
	v := d.buf.At(newTail)
	if d.head.Load() <= newTail {
		return v, true
	}

	// A thief may have raced us for the last element; reconfirm under the
	// mutex shared with Steal.
	d.mu.Lock()
	win := d.head.Load() <= newTail
	if !win {
		d.tail.Store(newTail + 1)
	}
	d.mu.Unlock()
	if !win {
		return zero, false
	}
	return v, true
}

// Steal removes and returns the oldest element (FIFO), from any thread.
// Blocks up to timeout trying to acquire the mutex shared with the owner's
// contested Pop path; returns false on timeout or if the deque is empty.
//
// Mirrors proto/work_stealing_queue.hpp's shared_pull: head is advanced
// speculatively and published *before* tail is checked, then reverted on a
// miss, rather than checked first and published after. Checking first would
// let Pop's unlocked fast path (the single remaining element case, where
// head == newTail) observe a stale head and conclude it isn't contested
// while a thief concurrently also claims the same slot — publishing the
// advance first guarantees Pop's contention check in that case sees the
// bump and falls through to the shared mutex instead.
func (d *Deque[T]) Steal(timeout time.Duration) (T, bool) {
	var zero T
	if !d.mu.TryLockTimeout(timeout) {
		return zero, false
	}
	defer d.mu.Unlock()

	h := d.head.Load()
	d.head.Store(h + 1)
	if h < d.tail.Load() {
		return d.buf.At(h), true
	}
	d.head.Store(h) // revert: nothing there after all
	return zero, false
}

// Len returns the approximate number of elements currently held.
func (d *Deque[T]) Len() int {
	t := d.tail.Load()
	h := d.head.Load()
	if t < h {
		return 0
	}
	return int(t - h)
}

// Empty reports whether the deque is (approximately) empty.
func (d *Deque[T]) Empty() bool {
	return d.Len() == 0
}

// timedMutex is a mutex that supports try-lock-with-timeout, needed for
// Steal's bounded-timeout acquisition and unavailable from sync.Mutex
// directly (TryLock alone cannot wait for a bounded duration).
type timedMutex struct {
	ch chan struct{}
}

func (m *timedMutex) init() {
	m.ch = make(chan struct{}, 1)
	m.ch <- struct{}{}
}

func (m *timedMutex) Lock() { <-m.ch }

func (m *timedMutex) Unlock() { m.ch <- struct{}{} }

func (m *timedMutex) TryLockTimeout(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-m.ch:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-m.ch:
		return true
	case <-timer.C:
		return false
	}
}
