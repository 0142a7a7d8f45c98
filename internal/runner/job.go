package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"comicloader/internal/core/logger"
	"comicloader/internal/core/tracker"
)

var ErrPanicked = errors.New("job handler panicked")

// JobHandler is a handler that implements the job's behavior.
type JobHandler func(ctx context.Context, job *Job) error

// JobCallback is a callback function that is called when the job is done.
type JobCallback func(ctx context.Context, job *Job)

// JobOption is an option for a job.
type JobOption func(job *Job)

// WithJobLogger is an option for a job to set the logger.
func WithJobLogger(logger *logger.Logger) JobOption {
	return func(j *Job) {
		j.logger = logger
	}
}

// WithJobCallback is an option for a job to set the callback.
func WithJobCallback(callback JobCallback) JobOption {
	return func(j *Job) {
		j.callback = callback
	}
}

// Job is a cancellable unit of work run once by a pool worker.
type Job struct {
	logger   *logger.Logger
	tracker  *tracker.Tracker
	name     string
	callback JobCallback
	handler  JobHandler

	mu       sync.Mutex
	cancel   context.CancelFunc
	canceled bool
	done     chan struct{}
}

// NewJob creates a new job with a name and a handler.
func NewJob(name string, handler JobHandler, opts ...JobOption) *Job {
	j := &Job{
		logger:  logger.Discard(),
		tracker: tracker.NewTracker(name),
		name:    name,
		handler: handler,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name returns the name of the job.
func (j *Job) Name() string {
	return j.name
}

// Run runs the job handler under a context that Cancel can interrupt.
func (j *Job) Run(ctx context.Context) error {
	// Preflight check
	if !j.tracker.IsPending() {
		j.logger.Debug("job already started", "job", j.name)
		return fmt.Errorf("job already started")
	}

	j.mu.Lock()
	ctx, j.cancel = context.WithCancel(ctx)
	if j.canceled {
		j.cancel()
	}
	j.mu.Unlock()
	defer j.cancel()

	j.tracker.Start()
	err := ctx.Err()
	if err == nil {
		err = j.safeHandle(ctx)
	}
	j.tracker.Update(err)

	if j.callback != nil {
		j.callback(ctx, j)
		j.logger.Debug("invoked job callback", "job", j.name)
	}
	close(j.done)

	return err
}

// safeHandle runs the handler and reports a panic as ErrPanicked.
func (j *Job) safeHandle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("job panicked", "job", j.name, "panic", r)
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return j.handler(ctx, j)
}

// Cancel asks the handler to stop. A job canceled before it runs
// finishes immediately with context.Canceled.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.canceled = true
	if j.cancel != nil {
		j.cancel()
	}
}

// Done is closed once the handler returned and the callback ran.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Tracker returns the tracker of the job.
func (j *Job) Tracker() *tracker.Tracker {
	return j.tracker
}

// Logger returns the logger of the job.
func (j *Job) Logger() *logger.Logger {
	return j.logger
}
