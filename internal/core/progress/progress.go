package progress

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var spinner = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Progress is a multi-progress bar group keyed by a caller-chosen id.
type Progress struct {
	mu        sync.Mutex
	container *mpb.Progress
	bars      map[string]*mpb.Bar
}

// Option configures the progress container.
type Option func() mpb.ContainerOption

// WithOutput sets the output for the progress container.
func WithOutput(w io.Writer) Option {
	return func() mpb.ContainerOption {
		return mpb.WithOutput(w)
	}
}

// WithRefreshRate sets the refresh rate for the progress container.
func WithRefreshRate(refreshRate time.Duration) Option {
	return func() mpb.ContainerOption {
		return mpb.WithRefreshRate(refreshRate)
	}
}

// NewProgress creates a new progress container.
func NewProgress(opts ...Option) *Progress {
	containerOpts := []mpb.ContainerOption{
		mpb.WithOutput(os.Stderr),
		mpb.WithRefreshRate(150 * time.Millisecond),
	}
	for _, opt := range opts {
		containerOpts = append(containerOpts, opt())
	}
	return &Progress{
		container: mpb.New(containerOpts...),
		bars:      make(map[string]*mpb.Bar),
	}
}

// barOptions returns the bar decorators: spinner, name, item counter, percent and ETA.
func barOptions(description string) []mpb.BarOption {
	return []mpb.BarOption{
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Spinner(spinner, decor.WCSyncSpaceR),
			decor.Name(description, decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d/%d", decor.WCSyncSpace),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.EwmaETA(decor.ET_STYLE_GO, 30, decor.WCSyncSpace),
		),
	}
}

// AddBar adds a bar counting up to total items.
func (g *Progress) AddBar(id, description string, total int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bars[id] = g.container.AddBar(total, barOptions(description)...)
}

// IncrementBar advances the bar by n items that took duration.
func (g *Progress) IncrementBar(id string, n int64, duration time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if bar, ok := g.bars[id]; ok {
		bar.EwmaIncrInt64(n, duration)
	}
}

// SetTotal updates the expected total of a bar, e.g. once the page count is known.
func (g *Progress) SetTotal(id string, total int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if bar, ok := g.bars[id]; ok {
		bar.SetTotal(total, false)
	}
}

// CloseBar completes or aborts the bar and forgets it.
func (g *Progress) CloseBar(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if bar, ok := g.bars[id]; ok {
		bar.Abort(true)
		delete(g.bars, id)
	}
}

// Wait closes remaining bars and waits for the container to flush.
func (g *Progress) Wait() {
	g.mu.Lock()
	for id, bar := range g.bars {
		bar.Abort(true)
		delete(g.bars, id)
	}
	g.mu.Unlock()
	g.container.Wait()
}
