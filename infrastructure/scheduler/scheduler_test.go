package scheduler

import (
	"sync"
	"testing"
	"time"
)

func TestTimerWheel_FiresAfterDelay(t *testing.T) {
	w := New(10 * time.Millisecond)
	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)

	fired := make(chan struct{}, 1)
	w.CallLater(5*time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestTimerWheel_OrdersSameDeadlineByInsertion(t *testing.T) {
	w := New(5 * time.Millisecond)
	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < 3; i++ {
		i := i
		w.CallLater(0, func() {
			mu.Lock()
			order = append(order, i)
			if len(order) == 3 {
				close(done)
			}
			mu.Unlock()
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callbacks did not all fire")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want insertion order 0,1,2", order)
		}
	}
}

func TestTimerWheel_PendingReflectsOutstandingCallbacks(t *testing.T) {
	w := New(time.Hour)
	w.CallLater(time.Hour, func() {})
	w.CallLater(time.Hour, func() {})

	if got := w.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}
}
