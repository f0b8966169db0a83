// Package worker runs background tasks on a fixed pool with a bounded
// queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stwalsh4118/tokkosync/internal/logger"
	"github.com/stwalsh4118/tokkosync/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when the queue has no free slot.
	ErrQueueFull = errors.New("task queue full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("runner stopped")
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 16
	errorBufferSize  = 32
)

// Task is a unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes submitted tasks on a fixed number of goroutines. Task
// failures are published on Errors.
type Runner struct {
	log     *logger.Logger
	tasks   chan Task
	errs    chan error
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers int

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewRunner creates a runner. Non-positive sizes fall back to defaults.
func NewRunner(workers, queueSize int, log *logger.Logger) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		log:     log.WithComponent("worker"),
		tasks:   make(chan Task, queueSize),
		errs:    make(chan error, errorBufferSize),
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
	}
}

// Start launches the worker goroutines. Calling it twice is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(i)
	}
	r.log.Info("Background runner started", map[string]interface{}{
		"workers":    r.workers,
		"queue_size": cap(r.tasks),
	})
}

// Submit queues a task without blocking.
func (r *Runner) Submit(task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}

	select {
	case r.tasks <- task:
		metrics.WorkerQueueDepth.Set(float64(len(r.tasks)))
		return nil
	default:
		r.log.Warn("Task queue full, rejecting task", map[string]interface{}{
			"task":       task.Name,
			"queue_size": cap(r.tasks),
		})
		return ErrQueueFull
	}
}

// Errors returns the channel task failures are published on. Failures are
// dropped when nobody drains it. The channel is closed by Stop.
func (r *Runner) Errors() <-chan error {
	return r.errs
}

// Stop rejects new tasks and waits for queued ones to finish. After
// timeout the context handed to running tasks is cancelled and Stop waits
// for them to return.
func (r *Runner) Stop(timeout time.Duration) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.tasks)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		r.log.Warn("Background runner shutdown timeout, cancelling tasks", map[string]interface{}{
			"timeout": timeout.String(),
		})
		r.cancel()
		<-done
	}

	r.cancel()
	close(r.errs)
	r.log.Info("Background runner stopped", nil)
}

func (r *Runner) work(id int) {
	defer r.wg.Done()

	for task := range r.tasks {
		metrics.WorkerQueueDepth.Set(float64(len(r.tasks)))
		if err := r.run(task); err != nil {
			metrics.WorkerTaskErrors.Inc()
			r.publish(fmt.Errorf("task %s: %w", task.Name, err))
		}
	}
	r.log.Debug("Worker exiting", map[string]interface{}{"worker_id": id})
}

func (r *Runner) run(task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return task.Run(r.ctx)
}

func (r *Runner) publish(err error) {
	select {
	case r.errs <- err:
	default:
		r.log.Error("Task error dropped, error channel full", err, nil)
	}
}
