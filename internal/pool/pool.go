// Package pool runs frame decode tasks on a fixed set of workers pinned to
// real-time scheduling. The control loop submits without blocking; decode
// completion order is unrelated to submission order.
package pool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
)

// SlotCAS identifies the control-channel processor slot. Broadcast slots are
// numbered from zero.
const SlotCAS = -1

// ErrQueueFull is returned by Submit when the task queue is saturated. The
// queue is sized to the pool's throughput, so this indicates catastrophic
// overload and is treated as fatal by the caller.
var ErrQueueFull = errors.New("task queue full")

// Task identifies one unit of decode work: the processor slot owning the
// samples and the TTI they were received at. Gen is the cell-geometry
// generation the task was dispatched under; results from a stale generation
// are discarded by the processors.
type Task struct {
	Slot int
	TTI  uint32
	Gen  uint64
}

// WithLogger sets the logger for the pool.
func WithLogger(logger *slog.Logger) func(*Pool) {
	return func(p *Pool) {
		p.logger = logger.With(slog.String("component", "pool"))
	}
}

// WithQueueCapacity overrides the task queue capacity (default: four tasks
// per worker).
func WithQueueCapacity(n int) func(*Pool) {
	return func(p *Pool) {
		p.queueCap = n
	}
}

// Pool is a bounded worker pool. Workers elevate themselves to SCHED_RR at
// the configured priority; failure to elevate is logged and the worker
// continues at default priority.
type Pool struct {
	workers  int
	priority int
	queueCap int
	exec     func(Task)

	tasks     chan Task
	wg        sync.WaitGroup
	closeOnce sync.Once

	logger *slog.Logger
}

// New creates a pool of workers executing tasks through exec.
func New(workers, priority int, exec func(Task), options ...func(*Pool)) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("invalid worker count: %d", workers)
	}
	if exec == nil {
		return nil, fmt.Errorf("task executor is required")
	}

	p := Pool{
		workers:  workers,
		priority: priority,
		queueCap: workers * 4,
		exec:     exec,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	p.tasks = make(chan Task, p.queueCap)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return &p, nil
}

// Submit queues a task without blocking.
func (p *Pool) Submit(t Task) error {
	select {
	case p.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for queued work to drain. It is safe
// to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := SetRealtime(p.priority); err != nil {
		p.logger.Warn(fmt.Sprintf("cannot set worker priority to realtime: %s. Worker will run at default priority.", err.Error()),
			slog.Int("worker", id))
	}

	for t := range p.tasks {
		p.exec(t)
	}
}
