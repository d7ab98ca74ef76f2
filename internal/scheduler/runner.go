package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull  = errors.New("task queue is full")
	ErrNotRunning = errors.New("runner is not running")
	ErrBusy       = errors.New("runner is busy")
)

type Task func(ctx context.Context) error

type queuedTask struct {
	name string
	run  Task
}

// Runner executes submitted tasks one at a time, in submission order.
type Runner struct {
	queue  chan queuedTask
	logger *slog.Logger
	stopCh chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	current string
	// pending counts queued and running tasks. It is raised in the same
	// critical section that enqueues and lowered once a task returns.
	pending int
}

type RunnerConfig struct {
	QueueSize int
}

func NewRunner(cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		queue:  make(chan queuedTask, cfg.QueueSize),
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	r.logger.Info("runner started", "queueSize", cap(r.queue))
	go func() {
		for {
			select {
			case <-ctx.Done():
				r.mu.Lock()
				r.stopped = true
				r.mu.Unlock()
				r.logger.Info("runner stopped")
				close(r.stopCh)
				return
			case task := <-r.queue:
				r.execute(ctx, task)
			}
		}
	}()
}

// Submit queues task without waiting for it to run.
func (r *Runner) Submit(name string, task Task) error {
	return r.submit(name, task, false)
}

// TrySubmit queues task only when nothing is queued or running, checking
// and enqueueing atomically.
func (r *Runner) TrySubmit(name string, task Task) error {
	return r.submit(name, task, true)
}

func (r *Runner) submit(name string, task Task, exclusive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.stopped {
		return ErrNotRunning
	}
	if exclusive && r.pending > 0 {
		return fmt.Errorf("queue %s: %w", name, ErrBusy)
	}

	select {
	case r.queue <- queuedTask{name: name, run: task}:
		r.pending++
		r.logger.Debug("task queued", "task", name)
		return nil
	default:
		return fmt.Errorf("queue %s: %w", name, ErrQueueFull)
	}
}

// Current returns the name of the running task, or "" when idle.
func (r *Runner) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Busy reports whether a task is running or waiting in the queue.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending > 0
}

func (r *Runner) StopWait(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	select {
	case <-r.stopCh:
	case <-time.After(timeout):
	}
}

func (r *Runner) execute(ctx context.Context, task queuedTask) {
	r.setCurrent(task.name)
	defer r.done()

	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("task panicked", "task", task.name, "panic", fmt.Sprint(recovered))
		}
	}()

	if err := task.run(ctx); err != nil {
		r.logger.Warn("task failed", "task", task.name, "duration", time.Since(started).String(), "error", err)
		return
	}
	r.logger.Info("task finished", "task", task.name, "duration", time.Since(started).String())
}

func (r *Runner) setCurrent(name string) {
	r.mu.Lock()
	r.current = name
	r.mu.Unlock()
}

func (r *Runner) done() {
	r.mu.Lock()
	r.current = ""
	r.pending--
	r.mu.Unlock()
}
