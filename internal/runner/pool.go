package runner

import (
	"context"
	"fmt"
	"sync"

	"comicloader/internal/core/logger"
	"comicloader/internal/core/tracker"
)

const (
	poolSize    = 64
	poolWorkers = 1
)

// PoolCallback is a callback that is called when the pool is done.
type PoolCallback func(ctx context.Context, pool *Pool)

// PoolOption is an option for a pool.
type PoolOption func(*Pool)

// WithPoolLogger is an option for a pool to set the logger.
func WithPoolLogger(logger *logger.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithPoolCallback is an option for a pool to set the callback.
func WithPoolCallback(callback PoolCallback) PoolOption {
	return func(p *Pool) {
		p.callback = callback
	}
}

// WithPoolQueueSize is an option for a pool to set the size of the queues.
func WithPoolQueueSize(size int) PoolOption {
	return func(p *Pool) {
		p.jobs = make(chan *Job, size)
		p.completed = make(chan *Job, size)
	}
}

// WithPoolWorkers is an option for a pool to set the number of workers.
func WithPoolWorkers(workers int) PoolOption {
	return func(p *Pool) {
		p.workers = max(1, workers)
	}
}

// Pool runs submitted jobs on a fixed number of worker goroutines and
// reports every accepted job on the completed channel, including the ones
// still queued when the pool stops: those finish canceled without running
// their handler.
type Pool struct {
	name      string
	workers   int
	wg        sync.WaitGroup
	logger    *logger.Logger
	tracker   *tracker.Tracker
	jobs      chan *Job
	completed chan *Job
	callback  PoolCallback

	mu      sync.Mutex
	closed  bool
	stopped chan struct{}
}

// NewPool creates a new job pool with the given options.
// The pool stops when ctx is done.
func NewPool(ctx context.Context, name string, opts ...PoolOption) *Pool {
	p := &Pool{
		name:      name,
		workers:   poolWorkers,
		logger:    logger.Discard(),
		tracker:   tracker.NewTracker(name),
		jobs:      make(chan *Job, poolSize),
		completed: make(chan *Job, poolSize),
		stopped:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.tracker.Start()
	go p.stopOn(ctx)
	p.startWorkers(ctx)

	return p
}

// stopOn closes the pool to new jobs once ctx is done. Submit and stopOn
// share mu so no job lands in the queue after workers start draining it.
func (p *Pool) stopOn(ctx context.Context) {
	<-ctx.Done()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	close(p.stopped)
}

func (p *Pool) startWorkers(ctx context.Context) {
	p.wg.Add(p.workers)
	for range p.workers {
		go p.worker(ctx)
	}
	go p.finalizer(ctx)
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopped:
			p.drain(ctx)
			p.logger.Debug("pool is closed, worker exiting")
			return
		case job := <-p.jobs:
			p.run(ctx, job)
		}
	}
}

// drain finishes the jobs left in the queue as canceled.
func (p *Pool) drain(ctx context.Context) {
	for {
		select {
		case job := <-p.jobs:
			p.logger.Debug("canceling queued job", "job", job.Name())
			job.Cancel()
			p.run(ctx, job)
		default:
			return
		}
	}
}

// run executes job and always reports it; the reader of Completed is
// expected to keep reading until the channel is closed.
func (p *Pool) run(ctx context.Context, job *Job) {
	p.logger.Debug("worker running job", "job", job.Name())
	err := job.Run(ctx)
	p.tracker.IncCurrent(1)
	p.completed <- job
	p.logger.Debug("job completed",
		"job", job.Name(),
		"status", job.Tracker().Status(),
		"duration", job.Tracker().DurationString(),
		"error", err,
	)
}

func (p *Pool) finalizer(ctx context.Context) {
	p.wg.Wait()
	close(p.completed)
	p.tracker.Update(nil)

	if p.callback != nil {
		p.callback(ctx, p)
	}
}

// Submit adds a new job to the pool.
func (p *Pool) Submit(job *Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.logger.Debug("pool is closed, job rejected", "job", job.Name())
		return fmt.Errorf("pool is closed")
	}
	select {
	case p.jobs <- job:
		p.logger.Debug("submitted job", "job", job.Name())
		p.tracker.IncTotal(1)
		return nil
	default:
		p.logger.Debug("jobs channel is full, job rejected", "job", job.Name())
		return fmt.Errorf("jobs channel is full")
	}
}

// Wait blocks until a job is completed. It fails once the pool stopped and
// every accepted job was reported.
func (p *Pool) Wait() (*Job, error) {
	job, ok := <-p.completed
	if !ok {
		return nil, fmt.Errorf("pool is closed")
	}
	return job, nil
}

// Completed returns the completed job channel.
// The channel is closed once every worker exited.
func (p *Pool) Completed() <-chan *Job {
	return p.completed
}

// Tracker returns the tracker of the pool.
func (p *Pool) Tracker() *tracker.Tracker {
	return p.tracker
}
