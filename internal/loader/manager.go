package loader

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"comicloader/internal/archive"
	"comicloader/internal/cache"
	"comicloader/internal/core/logger"
	"comicloader/internal/core/types"
	"comicloader/internal/library"
	"comicloader/internal/metrics"
	"comicloader/internal/runner"
	"comicloader/internal/thumbnail"

	"github.com/google/uuid"
)

// Manager is the extraction scheduler.
type Manager struct {
	logger         *logger.Logger
	store          *cache.Store
	open           Opener
	lister         Lister
	recorder       Recorder
	thumbs         *thumbnail.Compositor
	metrics        *metrics.Metrics
	mosaicChildren int

	ctx      context.Context
	cancel   context.CancelFunc
	stopPool context.CancelFunc
	pool     *runner.Pool
	loopDone chan struct{}

	mu      sync.Mutex
	running *task
	pages   *pagesJob
	covers  []*coverJob
	closed  bool
}

// NewManager starts a manager writing into store. Once ctx is done every
// running or queued job finishes cancelled; the worker itself lives until
// Close.
func NewManager(ctx context.Context, store *cache.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:         logger.Discard(),
		store:          store,
		open:           OpenLocal,
		lister:         library.FSLister{},
		mosaicChildren: defaultMosaicChildren,
		loopDone:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.thumbs == nil {
		m.thumbs = thumbnail.NewCompositor(types.DefaultThumbnailConfig(), m.logger)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	var poolCtx context.Context
	poolCtx, m.stopPool = context.WithCancel(context.WithoutCancel(ctx))
	m.pool = runner.NewPool(poolCtx, "loader",
		runner.WithPoolLogger(m.logger.Named("pool")),
		runner.WithPoolWorkers(1),
	)
	go m.loop()
	return m
}

// loop marshals completions back under the manager lock.
func (m *Manager) loop() {
	defer close(m.loopDone)
	for job := range m.pool.Completed() {
		m.complete(job)
	}
}

// RequestCover asks for the cover of entry. A cached cover is reported
// right away without creating a job. For a directory the first child
// comics are queued ahead of it so their covers can be composed.
func (m *Manager) RequestCover(entry *types.Entry, listener Listener, onFinished FinishedFunc) {
	if !entry.IsDir && archive.FormatOf(entry.Identity) == archive.FormatUnknown {
		m.fail(entry, onFinished, fmt.Errorf("%w: %s", archive.ErrUnsupportedFormat, entry.Identity))
		return
	}

	key := types.CoverKey(entry.Hashkey)
	if m.store.Exists(key) {
		if listener != nil && listener.Wants(key) {
			listener.OnProgress(Progress{
				Entry:  entry,
				Key:    key,
				Total:  entry.PageCount(),
				Path:   m.store.PathFor(key),
				Origin: types.OriginCached,
			})
		}
		if onFinished != nil {
			onFinished(Finished{Entry: entry, Result: types.ResultSuccess, Pages: entry.PageCount()})
		}
		return
	}

	var sources []*types.Entry
	if entry.IsDir {
		children, err := m.lister.Children(m.ctx, entry, m.mosaicChildren)
		if err != nil {
			m.fail(entry, onFinished, fmt.Errorf("list %s: %w", entry.Identity, err))
			return
		}
		sources = children
	}

	m.mu.Lock()
	var notify []func()
	added := 0
	for _, child := range sources {
		if m.coverScheduledLocked(child.Identity) || m.store.Exists(types.CoverKey(child.Hashkey)) {
			continue
		}
		m.covers = append(m.covers, &coverJob{entry: child})
		added++
	}
	if job := m.findCoverLocked(entry.Identity); job != nil {
		if added > 0 {
			m.requeueLastLocked(job)
		}
		if old := job.replace(listener, onFinished); old != nil {
			notify = append(notify, func() { old(Finished{Entry: entry, Result: types.ResultCancelled}) })
		}
		if entry.IsDir {
			job.sources = sources
		}
	} else {
		m.covers = append(m.covers, &coverJob{entry: entry, listener: listener, finished: onFinished, sources: sources})
	}
	notify = append(notify, m.dispatchLocked()...)
	m.metrics.SetQueueDepth(len(m.covers))
	m.mu.Unlock()

	run(notify)
}

// RequestPages asks for count pages of entry starting at start. A request
// for another archive than the current pages job replaces that job; a
// request for the same archive merges into it.
func (m *Manager) RequestPages(entry *types.Entry, start, count int, listener Listener, onFinished FinishedFunc) {
	if entry.IsDir || archive.FormatOf(entry.Identity) == archive.FormatUnknown {
		m.fail(entry, onFinished, fmt.Errorf("%w: %s", archive.ErrUnsupportedFormat, entry.Identity))
		return
	}
	start = max(0, start)

	m.mu.Lock()
	var notify []func()
	if count > 0 {
		if m.pages != nil && m.pages.entry.Identity != entry.Identity {
			m.logger.Debug("replacing pages job", "old", m.pages.entry, "new", entry)
			notify = append(notify, m.detachPagesLocked()...)
		}
		if m.pages == nil {
			m.pages = newPagesJob(entry)
		}
		m.pages.merge(start, count, listener)
		m.pages.addEntry(entry)
		if onFinished != nil {
			m.pages.finished = append(m.pages.finished, onFinished)
		}
	} else if onFinished != nil {
		notify = append(notify, func() {
			onFinished(Finished{Entry: entry, Result: types.ResultSuccess, Pages: entry.PageCount()})
		})
	}
	notify = append(notify, m.dispatchLocked()...)
	m.mu.Unlock()

	run(notify)
}

// Cancel stops the running job if it concerns entry. It does not block;
// the returned channel is closed once the worker stopped and the next job
// may start. A cancelled pages job is dropped, not resumed.
func (m *Manager) Cancel(entry *types.Entry) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.running
	if t == nil || t.entry.Identity != entry.Identity {
		return closedChan
	}
	if t.kind == kindPages && m.pages == t.pages {
		m.pages = nil
	}
	m.cancelLocked(t)
	return t.done
}

// CancelCurrent is Cancel followed by waiting for the acknowledgement.
// It must not be called from a listener or finish callback.
func (m *Manager) CancelCurrent(entry *types.Entry) {
	<-m.Cancel(entry)
}

// Clean cancels the running job, drops the pages job and empties the cover
// queue. Dropped requests finish with types.ResultCancelled.
func (m *Manager) Clean() {
	m.mu.Lock()
	var notify []func()
	if m.pages != nil {
		notify = append(notify, m.detachPagesLocked()...)
	}
	for _, job := range m.covers {
		if job.finished != nil {
			notify = append(notify, func() { job.finished(Finished{Entry: job.entry, Result: types.ResultCancelled}) })
		}
	}
	m.covers = nil
	m.metrics.SetQueueDepth(0)

	done := closedChan
	if t := m.running; t != nil {
		m.cancelLocked(t)
		done = t.done
	}
	m.mu.Unlock()

	run(notify)
	select {
	case <-done:
	case <-m.loopDone:
	}
}

// Close cleans up and stops the worker.
func (m *Manager) Close() error {
	m.Clean()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.stopPool()
	<-m.loopDone
	return nil
}

// Idle reports whether nothing runs and nothing is queued.
func (m *Manager) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running == nil && m.pages == nil && len(m.covers) == 0
}

// QueueLen returns the number of queued cover jobs.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.covers)
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func run(calls []func()) {
	for _, call := range calls {
		call()
	}
}

func (m *Manager) fail(entry *types.Entry, onFinished FinishedFunc, err error) {
	m.logger.Warn("request rejected", "entry", entry, "error", err)
	if onFinished != nil {
		onFinished(Finished{Entry: entry, Result: types.ResultError, Err: err})
	}
}

func (m *Manager) findCoverLocked(identity string) *coverJob {
	if t := m.running; t != nil && t.kind == kindCover && t.entry.Identity == identity && !t.canceled {
		return t.cover
	}
	for _, job := range m.covers {
		if job.entry.Identity == identity {
			return job
		}
	}
	return nil
}

// requeueLastLocked moves a queued cover job to the tail so children queued
// after it are composed first. A running job is left alone.
func (m *Manager) requeueLastLocked(job *coverJob) {
	i := slices.Index(m.covers, job)
	if i < 0 {
		return
	}
	m.covers = append(slices.Delete(m.covers, i, i+1), job)
}

func (m *Manager) coverScheduledLocked(identity string) bool {
	return m.findCoverLocked(identity) != nil
}

func (m *Manager) cancelLocked(t *task) {
	if t.canceled {
		return
	}
	m.logger.Debug("cancelling job", "task", t.id, "kind", t.kind, "entry", t.entry)
	t.canceled = true
	t.job.Cancel()
}

// detachPagesLocked drops the current pages job. If it is running, its
// task is cancelled and the finish callbacks run on completion.
func (m *Manager) detachPagesLocked() []func() {
	pj := m.pages
	m.pages = nil
	if t := m.running; t != nil && t.pages == pj {
		m.cancelLocked(t)
		return nil
	}
	return pj.notify(Finished{Entry: pj.entry, Result: types.ResultCancelled})
}

// dispatchLocked starts the next unit of work if the worker is free.
// Pages win over covers.
func (m *Manager) dispatchLocked() []func() {
	if m.running != nil || m.closed {
		return nil
	}

	t := &task{id: uuid.NewString()[:8], done: make(chan struct{})}
	switch {
	case m.pages != nil:
		t.kind = kindPages
		t.entry = m.pages.entry
		t.pages = m.pages
		t.indices = m.pages.pending()
		for _, i := range t.indices {
			m.pages.inFlight[i] = true
		}
	case len(m.covers) > 0:
		t.kind = kindCover
		t.cover = m.covers[0]
		t.entry = t.cover.entry
		m.covers = m.covers[1:]
		m.metrics.SetQueueDepth(len(m.covers))
	default:
		return nil
	}

	log := m.logger.With("task", t.id, "kind", t.kind, "entry", t.entry)
	t.job = runner.NewJob(t.kind.String()+":"+t.id, func(ctx context.Context, job *runner.Job) error {
		if m.ctx.Err() != nil {
			return context.Canceled
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		defer context.AfterFunc(m.ctx, cancel)()
		return m.execute(ctx, job, t)
	}, runner.WithJobLogger(log))

	if err := m.pool.Submit(t.job); err != nil {
		log.Error("failed to submit job", "error", err)
		close(t.done)
		return m.abandonLocked(t, err)
	}
	log.Debug("dispatched job", "pages", len(t.indices))
	m.running = t
	return nil
}

// abandonLocked fails a task that never reached the worker.
func (m *Manager) abandonLocked(t *task, err error) []func() {
	f := Finished{Entry: t.entry, Result: types.ResultError, Err: err}
	switch t.kind {
	case kindCover:
		if t.cover.finished != nil {
			return []func(){func() { t.cover.finished(f) }}
		}
	case kindPages:
		if m.pages == t.pages {
			m.pages = nil
		}
		return t.pages.notify(f)
	}
	return nil
}

// complete is the acknowledgement of a finished job: the running task is
// cleared, callbacks are notified and the next job is dispatched.
func (m *Manager) complete(job *runner.Job) {
	m.mu.Lock()
	t := m.running
	if t == nil || t.job != job {
		m.mu.Unlock()
		m.logger.Warn("completion for unknown job", "job", job.Name())
		return
	}
	m.running = nil

	tr := job.Tracker()
	result := tr.Result()
	f := Finished{Entry: t.entry, Result: result, Pages: t.total, Err: tr.Err()}
	if result == types.ResultCancelled {
		f.Err = nil
	}

	if t.kind == kindPages && t.total > 0 {
		for _, e := range t.pages.entries {
			e.SetPageCount(t.total)
		}
	}

	var notify []func()
	switch t.kind {
	case kindCover:
		if fn := t.cover.finished; fn != nil {
			notify = append(notify, func() { fn(f) })
		}
	case kindPages:
		switch {
		case m.pages != t.pages:
			// replaced or cancelled while running
			f.Result, f.Err = types.ResultCancelled, nil
			notify = t.pages.notify(f)
		case result != types.ResultSuccess:
			m.pages = nil
			notify = t.pages.notify(f)
		case t.pages.settle(t.total):
			// pages merged in while running; the job goes again
		default:
			m.pages = nil
			notify = t.pages.notify(f)
		}
	}
	notify = append(notify, m.dispatchLocked()...)
	m.mu.Unlock()

	m.metrics.JobFinished(t.kind.String(), f.Result.String(), tr.Duration())
	m.logger.Debug("job finished",
		"task", t.id,
		"kind", t.kind,
		"entry", t.entry,
		"result", f.Result,
		"pages", tr.ProgressFraction(),
		"written", tr.WrittenBytes(),
		"duration", tr.DurationString(),
		"error", f.Err,
	)
	run(notify)
	close(t.done)
}

// deliver relays one result to the listener still bound to it.
func (m *Manager) deliver(t *task, key types.CacheKey, total int, path string, origin types.Origin) {
	m.mu.Lock()
	if m.running != t || t.canceled {
		m.mu.Unlock()
		return
	}
	var l Listener
	switch t.kind {
	case kindCover:
		l = t.cover.listener
	case kindPages:
		l = t.pages.take(key.Slot.Page())
	}
	m.mu.Unlock()

	t.job.Tracker().IncCurrent(1)
	if l == nil || !l.Wants(key) {
		return
	}
	l.OnProgress(Progress{Entry: t.entry, Key: key, Total: total, Path: path, Origin: origin})
}
