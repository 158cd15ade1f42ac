package sender

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 4})
	d.Close()

	err := d.Enqueue(context.Background(), "noop", func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue after Close = %v, want ErrQueueClosed", err)
	}
}

func TestCloseDrainsQueuedJobs(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 64})

	var ran atomic.Int64
	for i := 0; i < 32; i++ {
		if err := d.Enqueue(context.Background(), "count", func() error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	d.Close()

	if got := ran.Load(); got != 32 {
		t.Fatalf("ran %d jobs before shutdown completed, want 32", got)
	}
}

// Shutdown must never panic while other goroutines are still enqueueing;
// late arrivals get ErrQueueClosed or ErrQueueFull.
func TestConcurrentEnqueueAndClose(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 8})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				err := d.Enqueue(context.Background(), "noop", func() error { return nil })
				if err != nil && !errors.Is(err, ErrQueueClosed) && !errors.Is(err, ErrQueueFull) {
					t.Errorf("Enqueue: %v", err)
					return
				}
			}
		}()
	}
	d.Close()
	wg.Wait()
}
