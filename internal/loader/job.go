package loader

import (
	"slices"

	"comicloader/internal/core/types"
	"comicloader/internal/runner"
)

type jobKind int

const (
	kindPages jobKind = iota
	kindCover
)

func (k jobKind) String() string {
	if k == kindCover {
		return "cover"
	}
	return "pages"
}

// coverJob produces one thumbnail. sources is set for directories only.
type coverJob struct {
	entry    *types.Entry
	listener Listener
	finished FinishedFunc
	sources  []*types.Entry
}

// replace rebinds a queued or running job to a new requester. The
// superseded finish callback is returned so it can be told it was dropped.
func (c *coverJob) replace(listener Listener, finished FinishedFunc) FinishedFunc {
	if listener != nil {
		c.listener = listener
	}
	if finished == nil {
		return nil
	}
	old := c.finished
	c.finished = finished
	return old
}

// pagesJob collects the pages wanted from one archive.
type pagesJob struct {
	entry *types.Entry
	// entries holds every distinct Entry value merged into the job
	entries []*types.Entry
	// requests maps page index to its listener; nil keeps the page
	// scheduled with nobody listening
	requests map[int]Listener
	// inFlight holds the indices handed to the running task that were not
	// delivered yet
	inFlight map[int]bool
	finished []FinishedFunc
}

func newPagesJob(entry *types.Entry) *pagesJob {
	return &pagesJob{
		entry:    entry,
		entries:  []*types.Entry{entry},
		requests: make(map[int]Listener),
		inFlight: make(map[int]bool),
	}
}

// merge adds the window [start, start+count) for listener. A listener that
// asked for other pages before is detached from those pages; the pages
// themselves stay scheduled.
func (p *pagesJob) merge(start, count int, listener Listener) {
	end := start + count
	if listener != nil {
		for i, l := range p.requests {
			if l == listener && (i < start || i >= end) {
				p.requests[i] = nil
			}
		}
	}
	for i := start; i < end; i++ {
		p.requests[i] = listener
	}
}

func (p *pagesJob) addEntry(entry *types.Entry) {
	if !slices.Contains(p.entries, entry) {
		p.entries = append(p.entries, entry)
	}
}

// pending returns the requested indices in ascending order.
func (p *pagesJob) pending() []int {
	indices := make([]int, 0, len(p.requests))
	for i := range p.requests {
		indices = append(indices, i)
	}
	slices.Sort(indices)
	return indices
}

// take removes index from the job and returns its listener.
func (p *pagesJob) take(index int) Listener {
	l := p.requests[index]
	delete(p.requests, index)
	delete(p.inFlight, index)
	return l
}

// settle drops what the finished task was handed and every page past the
// end of the archive. It reports whether pages merged in meanwhile remain.
func (p *pagesJob) settle(total int) bool {
	for i := range p.inFlight {
		delete(p.requests, i)
	}
	clear(p.inFlight)
	for i := range p.requests {
		if i >= total {
			delete(p.requests, i)
		}
	}
	return len(p.requests) > 0
}

func (p *pagesJob) notify(f Finished) []func() {
	calls := make([]func(), 0, len(p.finished))
	for _, fn := range p.finished {
		calls = append(calls, func() { fn(f) })
	}
	p.finished = nil
	return calls
}

// task is one dispatched unit of work.
type task struct {
	id    string
	kind  jobKind
	entry *types.Entry
	cover *coverJob
	pages *pagesJob

	indices  []int
	job      *runner.Job
	canceled bool
	done     chan struct{}

	// written by the worker, read after completion
	total int
}
