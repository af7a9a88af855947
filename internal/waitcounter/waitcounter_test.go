package waitcounter

import (
	"testing"
	"time"
)

func TestWaitCounter_WaitAndDisableBlocksUntilZero(t *testing.T) {
	wc := New()
	item := wc.Acquire()

	done := make(chan struct{})
	go func() {
		wc.WaitAndDisable()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitAndDisable returned while a held item was still outstanding")
	case <-time.After(50 * time.Millisecond):
	}

	item.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitAndDisable did not return after the held item was released")
	}
}

func TestWaitCounter_AddAfterDisablePanics(t *testing.T) {
	wc := New()
	wc.WaitAndDisable()

	defer func() {
		if recover() == nil {
			t.Fatal("expected Add after WaitAndDisable to panic")
		}
	}()
	wc.Add(1)
}

func TestWaitCounter_ItemReleaseIsIdempotent(t *testing.T) {
	wc := New()
	item := wc.Acquire()
	item.Release()
	item.Release() // must not double-decrement
	if got := wc.Count(); got != 1 {
		t.Fatalf("Count() after releasing one item twice = %d, want 1 (the initial unit)", got)
	}

	done := make(chan struct{})
	go func() {
		wc.WaitAndDisable()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitAndDisable did not return after the only held item was released")
	}
}
