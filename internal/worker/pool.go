package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdownTimeout is returned when workers don't stop within timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

const defaultInterval = 5 * time.Minute

// Task is a periodic background job, such as keeping an upstream
// credential warm.
type Task struct {
	Name     string
	Interval time.Duration
	// RunAtStart runs the task once as soon as the pool starts.
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// Pool runs each task on its own ticker until stopped.
type Pool struct {
	tasks  []Task
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]int

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a new worker pool.
func NewPool(tasks []Task, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	for i := range tasks {
		if tasks[i].Interval <= 0 {
			tasks[i].Interval = defaultInterval
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		tasks:  tasks,
		logger: logger.With("component", "worker"),
		runs:   make(map[string]int),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches one worker per task.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool", "tasks", len(p.tasks))

	for _, t := range p.tasks {
		p.wg.Add(1)
		go p.worker(t)
	}
}

// Stop cancels running tasks and waits for the workers to exit.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// Runs returns how many times the named task has completed, successfully
// or not.
func (p *Pool) Runs(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs[name]
}

func (p *Pool) worker(t Task) {
	defer p.wg.Done()

	logger := p.logger.With("task", t.Name)
	logger.Debug("worker started", "interval", t.Interval)

	if t.RunAtStart {
		p.runTask(logger, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			logger.Debug("worker stopping")
			return
		case <-ticker.C:
			p.runTask(logger, t)
		}
	}
}

func (p *Pool) runTask(logger *slog.Logger, t Task) {
	if p.ctx.Err() != nil {
		return
	}

	// A run never outlives its own interval.
	ctx, cancel := context.WithTimeout(p.ctx, t.Interval)
	defer cancel()

	start := time.Now()
	err := t.Run(ctx)

	p.mu.Lock()
	p.runs[t.Name]++
	p.mu.Unlock()

	if err != nil {
		if p.ctx.Err() != nil {
			return
		}
		logger.Warn("task failed", "error", err, "duration", time.Since(start))
		return
	}
	logger.Debug("task completed", "duration", time.Since(start))
}
