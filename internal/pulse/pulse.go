// File: internal/pulse/pulse.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pulse is a one-shot park/unpark primitive that never loses a wakeup.
// A Pulse() issued before or during a Wait() causes that Wait() to return
// exactly once; back-to-back Pulse() calls with no intervening Wait()
// collapse into a single pending wakeup. At most one waiter is supported
// at a time.
//
// Grounded on proto/unique_pulse.hpp / unique_pulse.cpp's UniquePulse.

package pulse

import "sync"

// Pulse is a latching, single-waiter park/unpark primitive.
type Pulse struct {
	mu     sync.Mutex
	cond   *sync.Cond
	pulsed bool
	asleep bool
}

// New returns a Pulse ready for use.
func New() *Pulse {
	p := &Pulse{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Pulse wakes a waiter if one is currently blocked in Wait; otherwise it
// latches so the next Wait call returns immediately without blocking.
func (p *Pulse) Pulse() {
	p.mu.Lock()
	p.pulsed = true
	asleep := p.asleep
	p.mu.Unlock()
	if asleep {
		p.cond.Signal()
	}
}

// Wait blocks until a pulse is pending (including one latched before this
// call began), then consumes it. Only one goroutine may call Wait concurrently.
func (p *Pulse) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.asleep {
		panic("pulse: concurrent Wait calls are not supported")
	}
	p.asleep = true
	for !p.pulsed {
		p.cond.Wait()
	}
	p.pulsed = false
	p.asleep = false
}
