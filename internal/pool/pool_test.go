package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_ExecutesTasks(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[uint32]bool)

	p, err := New(2, 0, func(task Task) {
		mu.Lock()
		seen[task.TTI] = true
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	for tti := uint32(0); tti < 8; tti++ {
		if err = p.Submit(Task{Slot: int(tti % 2), TTI: tti}); err != nil {
			t.Fatalf("Submit %d failed: %v", tti, err)
		}
	}
	p.Close()

	for tti := uint32(0); tti < 8; tti++ {
		if !seen[tti] {
			t.Errorf("Task for TTI %d was never executed", tti)
		}
	}
}

func TestPool_SubmitDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	p, err := New(1, 0, func(Task) { <-block }, WithQueueCapacity(1))
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	// First task occupies the worker, second fills the queue.
	_ = p.Submit(Task{TTI: 1})
	time.Sleep(10 * time.Millisecond)
	_ = p.Submit(Task{TTI: 2})

	start := time.Now()
	err = p.Submit(Task{TTI: 3})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Submit blocked for %s", elapsed)
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Expected ErrQueueFull, got %v", err)
	}

	close(block)
	p.Close()
}

func TestPool_CloseDrainsQueue(t *testing.T) {
	var executed atomic.Int32
	p, err := New(1, 0, func(Task) {
		time.Sleep(5 * time.Millisecond)
		executed.Add(1)
	})
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	for i := 0; i < 4; i++ {
		if err = p.Submit(Task{TTI: uint32(i)}); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}
	p.Close()

	if n := executed.Load(); n != 4 {
		t.Errorf("Expected 4 tasks executed before Close returned, got %d", n)
	}
}

func TestPool_InvalidConfig(t *testing.T) {
	if _, err := New(0, 0, func(Task) {}); err == nil {
		t.Error("Expected an error for zero workers")
	}
	if _, err := New(1, 0, nil); err == nil {
		t.Error("Expected an error for a nil executor")
	}
}
