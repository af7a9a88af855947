// File: internal/waitcounter/waitcounter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WaitCounter is an atomic counter with "wait until zero then disable"
// semantics: callers hold a count unit (via Add/Item or the Acquire/Release
// pair) for as long as they are active; WaitAndDisable blocks until every
// held unit has been released and then permanently rejects further Adds.
//
// Grounded on core/blocking_counter.hpp's BlockingCounter and its RAII
// Item guard.

package waitcounter

import "sync"

// WaitCounter starts with an implicit initial unit of count 1, matching the
// source's BlockingCounter (which biases the counter so the owner's own
// "still setting up" period doesn't race a premature zero-crossing). That
// initial unit is released by WaitAndDisable itself; Done is only for units
// taken with Add or Acquire.
type WaitCounter struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count uint32
	alive bool
}

// New returns a WaitCounter with an initial count of 1.
func New() *WaitCounter {
	wc := &WaitCounter{count: 1, alive: true}
	wc.cond = sync.NewCond(&wc.mu)
	return wc
}

// Add increments the held count by n. Panics if called after
// WaitAndDisable — by that point the counter is not meant to accept more
// work, and silently ignoring it would hide a shutdown race.
func (wc *WaitCounter) Add(n uint32) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if !wc.alive {
		panic("waitcounter: Add called after WaitAndDisable")
	}
	wc.count += n
}

// Done decrements the held count by n, waking WaitAndDisable if the count
// reaches zero.
func (wc *WaitCounter) Done(n uint32) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if n >= wc.count {
		wc.count = 0
	} else {
		wc.count -= n
	}
	if wc.count == 0 {
		wc.cond.Broadcast()
	}
}

// WaitAndDisable marks the counter disabled, so any Add from then on
// panics, decrements once (releasing the initial implicit unit), and blocks
// until the count reaches zero. Only the first call decrements; later calls
// just block until the count reaches zero.
func (wc *WaitCounter) WaitAndDisable() {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.alive {
		wc.alive = false
		if wc.count > 0 {
			wc.count--
		}
	}
	for wc.count > 0 {
		wc.cond.Wait()
	}
}

// Count returns the current held count.
func (wc *WaitCounter) Count() uint32 {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.count
}

// Item is an RAII-style scoped hold on a WaitCounter: Acquire increments,
// Release (idempotent) decrements at most once.
type Item struct {
	wc       *WaitCounter
	released bool
}

// Acquire increments wc by one and returns a guard that releases it.
func (wc *WaitCounter) Acquire() *Item {
	wc.Add(1)
	return &Item{wc: wc}
}

// Release decrements the held unit, if it has not already been released.
func (it *Item) Release() {
	if it.released {
		return
	}
	it.released = true
	it.wc.Done(1)
}
