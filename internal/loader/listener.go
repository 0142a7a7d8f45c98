package loader

import (
	"sync"

	"comicloader/internal/core/types"
)

// Progress reports one cover or page that became available.
type Progress struct {
	Entry  *types.Entry
	Key    types.CacheKey
	Total  int // pages in the archive, 0 when unknown
	Path   string
	Origin types.Origin
}

// Finished reports the outcome of a request.
type Finished struct {
	Entry  *types.Entry
	Result types.Result
	Pages  int
	Err    error
}

// FinishedFunc receives the outcome of one request, exactly once.
type FinishedFunc func(Finished)

// Listener observes results. Wants is asked before every delivery so a
// listener that moved on to other pages or another comic is skipped.
//
// Listeners are compared with ==, so implementations must be comparable;
// pointer types are.
type Listener interface {
	Wants(key types.CacheKey) bool
	OnProgress(p Progress)
}

type funcListener struct {
	fn func(Progress)
}

// ListenerFunc returns a listener that wants everything and calls fn.
func ListenerFunc(fn func(Progress)) Listener {
	return &funcListener{fn: fn}
}

func (l *funcListener) Wants(types.CacheKey) bool { return true }

func (l *funcListener) OnProgress(p Progress) { l.fn(p) }

// Binding is what a listener currently wants: the cover or an inclusive
// window of pages of one archive.
type Binding struct {
	Hashkey     string
	First, Last types.Slot
}

// CoverBinding binds to the cover of hashkey.
func CoverBinding(hashkey string) Binding {
	return Binding{Hashkey: hashkey, First: types.SlotCover, Last: types.SlotCover}
}

// PagesBinding binds to count pages of hashkey starting at start.
func PagesBinding(hashkey string, start, count int) Binding {
	return Binding{Hashkey: hashkey, First: types.PageSlot(start), Last: types.PageSlot(start + count - 1)}
}

// Contains compares by value: same archive and a slot inside the window.
func (b Binding) Contains(key types.CacheKey) bool {
	return key.Hashkey == b.Hashkey && key.Slot >= b.First && key.Slot <= b.Last
}

// ChannelListener forwards wanted events to a channel. It can be rebound
// to another archive or window while requests for the old binding are
// still in flight; those results are then dropped.
type ChannelListener struct {
	mu      sync.Mutex
	binding Binding
	events  chan Progress
}

// NewChannelListener creates a listener with a buffer of size events.
// Deliveries block the worker while the buffer is full.
func NewChannelListener(b Binding, size int) *ChannelListener {
	return &ChannelListener{binding: b, events: make(chan Progress, size)}
}

func (l *ChannelListener) Rebind(b Binding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.binding = b
}

func (l *ChannelListener) Binding() Binding {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.binding
}

func (l *ChannelListener) Wants(key types.CacheKey) bool {
	return l.Binding().Contains(key)
}

func (l *ChannelListener) OnProgress(p Progress) {
	l.events <- p
}

// Events returns the delivered events.
func (l *ChannelListener) Events() <-chan Progress {
	return l.events
}
