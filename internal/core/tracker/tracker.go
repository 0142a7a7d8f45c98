package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"comicloader/internal/core/types"

	"github.com/dustin/go-humanize"
)

// Tracker records the lifecycle of one unit of work: status, timing,
// items processed out of a total, and bytes written.
type Tracker struct {
	name      string
	mu        sync.RWMutex
	status    types.Status
	startedAt time.Time
	endedAt   time.Time
	current   int64
	total     int64
	written   int64
	err       error
}

func NewTracker(name string) *Tracker {
	return &Tracker{
		name:   name,
		status: types.StatusPending,
	}
}

func (t *Tracker) Name() string {
	return t.name
}

func (t *Tracker) Status() types.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Result maps the current status onto a listener-facing result.
func (t *Tracker) Result() types.Result {
	return t.Status().Result()
}

func (t *Tracker) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Tracker) StartedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startedAt
}

func (t *Tracker) EndedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.endedAt
}

func (t *Tracker) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch t.status {
	case types.StatusPending:
		return 0
	case types.StatusRunning:
		return time.Since(t.startedAt)
	default:
		return t.endedAt.Sub(t.startedAt)
	}
}

func (t *Tracker) DurationString() string {
	return t.Duration().Round(time.Millisecond).String()
}

func (t *Tracker) Current() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

func (t *Tracker) IncCurrent(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = max(0, t.current+n)
}

func (t *Tracker) Total() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

func (t *Tracker) SetTotal(total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = max(0, total)
}

func (t *Tracker) IncTotal(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = max(0, t.total+n)
}

// AddWritten accounts for n bytes written to the cache.
func (t *Tracker) AddWritten(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written += max(0, n)
}

func (t *Tracker) Written() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.written
}

func (t *Tracker) WrittenBytes() string {
	return humanize.Bytes(uint64(t.Written()))
}

// Progress returns the progress of the tracker current/total as a float from 0 to 1.
func (t *Tracker) Progress() float64 {
	if t.Total() == 0 {
		return 0
	}
	return float64(t.Current()) / float64(t.Total())
}

// ProgressFraction returns the progress of the tracker current/total as a string.
func (t *Tracker) ProgressFraction() string {
	return fmt.Sprintf("%d/%d", t.Current(), t.Total())
}

// Start triggers the tracker to start.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedAt = time.Now()
	t.status = types.StatusRunning
	t.err = nil
}

// Update finishes the tracker from an error.
func (t *Tracker) Update(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endedAt = time.Now()
	t.err = err
	switch {
	case err == nil:
		t.status = types.StatusSucceeded
	case errors.Is(err, context.Canceled):
		t.status = types.StatusCanceled
	default:
		t.status = types.StatusFailed
	}
}

/// Status checks

func (t *Tracker) IsPending() bool {
	return t.Status() == types.StatusPending
}

func (t *Tracker) IsRunning() bool {
	return t.Status() == types.StatusRunning
}

func (t *Tracker) IsSucceeded() bool {
	return t.Status() == types.StatusSucceeded
}

func (t *Tracker) IsFailed() bool {
	return t.Status() == types.StatusFailed
}

func (t *Tracker) IsCanceled() bool {
	return t.Status() == types.StatusCanceled
}

func (t *Tracker) IsCompleted() bool {
	return t.Status().IsComplete()
}
