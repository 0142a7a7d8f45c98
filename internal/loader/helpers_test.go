package loader

import (
	"context"
	"fmt"
	"image/color"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"comicloader/internal/archive"
	"comicloader/internal/archive/archivetest"
	"comicloader/internal/cache"
	"comicloader/internal/core/types"
)

const testTimeout = 5 * time.Second

// fakeArchives serves in-memory archives and records how they are used.
type fakeArchives struct {
	t     testing.TB
	image []byte

	mu     sync.Mutex
	pages  map[string]int
	gates  map[string]chan struct{}
	opened []string
	active int
	peak   int

	started chan string
}

func newFakeArchives(t testing.TB) *fakeArchives {
	return &fakeArchives{
		t:       t,
		image:   archivetest.PNG(t, 6, 8, color.White),
		pages:   make(map[string]int),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 64),
	}
}

// add registers an archive with n pages and returns its entry.
func (f *fakeArchives) add(identity string, n int) *types.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[identity] = n
	return types.NewEntry(identity, false)
}

// hold makes opening identity block until the returned func is called.
func (f *fakeArchives) hold(identity string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[identity] = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeArchives) open(ctx context.Context, entry *types.Entry) (archive.Reader, error) {
	f.mu.Lock()
	n, ok := f.pages[entry.Identity]
	gate := f.gates[entry.Identity]
	f.opened = append(f.opened, entry.Identity)
	f.active++
	f.peak = max(f.peak, f.active)
	f.mu.Unlock()

	f.started <- entry.Identity

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			f.closed()
			return nil, ctx.Err()
		}
	}
	if !ok {
		f.closed()
		return nil, fmt.Errorf("%w: no such fake archive %s", archive.ErrCorruptArchive, entry.Identity)
	}
	r := &fakeReader{archives: f}
	for i := range n {
		r.pages = append(r.pages, archive.Page{Name: fmt.Sprintf("%03d.png", i)})
	}
	return r, nil
}

func (f *fakeArchives) closed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
}

func (f *fakeArchives) openedList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.opened)
}

func (f *fakeArchives) peakActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// waitStarted blocks until identity was opened.
func (f *fakeArchives) waitStarted(identity string) {
	f.t.Helper()
	timeout := time.After(testTimeout)
	for {
		select {
		case id := <-f.started:
			if id == identity {
				return
			}
		case <-timeout:
			f.t.Fatalf("timed out waiting for %s to be opened", identity)
		}
	}
}

type fakeReader struct {
	archives *fakeArchives
	pages    []archive.Page
}

func (r *fakeReader) Format() archive.Format { return archive.FormatZip }

func (r *fakeReader) Pages() []archive.Page { return r.pages }

func (r *fakeReader) ReadPage(ctx context.Context, index int) ([]byte, error) {
	if index < 0 || index >= len(r.pages) {
		return nil, archive.ErrPageOutOfRange
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.archives.image, nil
}

func (r *fakeReader) ReadPages(ctx context.Context, indices []int, fn func(int, []byte) error) error {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	for _, i := range slices.Compact(sorted) {
		if i < 0 || i >= len(r.pages) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(i, r.archives.image); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.archives.closed()
	return nil
}

// recorder collects events for one request.
type recorder struct {
	mu       sync.Mutex
	events   []Progress
	finished chan Finished
}

func newRecorder() *recorder {
	return &recorder{finished: make(chan Finished, 4)}
}

func (r *recorder) Wants(types.CacheKey) bool { return true }

func (r *recorder) OnProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *recorder) done(f Finished) { r.finished <- f }

func (r *recorder) wait(t testing.TB) Finished {
	t.Helper()
	select {
	case f := <-r.finished:
		return f
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the finish callback")
		return Finished{}
	}
}

// slots returns the delivered slots in delivery order.
func (r *recorder) slots() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Key.Slot.Page())
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestStore(t testing.TB) *cache.Store {
	t.Helper()
	base := t.TempDir()
	s, err := cache.NewStore(filepath.Join(base, "thumbs"), filepath.Join(base, "pages"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestManager(t testing.TB, store *cache.Store, opts ...ManagerOption) *Manager {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*testTimeout)
	m := NewManager(ctx, store, opts...)
	t.Cleanup(func() {
		m.Close()
		cancel()
	})
	return m
}

// waitIdle polls until the manager has nothing left to do.
func waitIdle(t testing.TB, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !m.Idle() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the manager to become idle")
		}
		time.Sleep(time.Millisecond)
	}
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) RecordPageCount(_ context.Context, entry *types.Entry, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[entry.Identity] = n
	return nil
}

func (c *countingRecorder) get(identity string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[identity]
}
