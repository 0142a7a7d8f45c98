// Package loader schedules cover and page extraction for comic archives.
//
// A Manager owns a single worker. At most one extraction runs at a time; a
// pending pages job always runs before queued cover jobs but never
// interrupts a cover job that already started. Results land in the cache
// store and are relayed to the listeners that still want them.
package loader

import (
	"context"

	"comicloader/internal/archive"
	"comicloader/internal/core/logger"
	"comicloader/internal/core/types"
	"comicloader/internal/metrics"
	"comicloader/internal/thumbnail"
)

const defaultMosaicChildren = 3

// Opener opens the archive behind an entry.
type Opener func(ctx context.Context, entry *types.Entry) (archive.Reader, error)

// Lister returns up to limit child comics of a library directory.
type Lister interface {
	Children(ctx context.Context, dir *types.Entry, limit int) ([]*types.Entry, error)
}

// Recorder persists page counts discovered while extracting.
type Recorder interface {
	RecordPageCount(ctx context.Context, entry *types.Entry, n int) error
}

// Fetcher makes an identity available as a local file.
type Fetcher interface {
	Fetch(ctx context.Context, identity string) (string, error)
}

// OpenLocal opens entry.Identity as a local path.
func OpenLocal(_ context.Context, entry *types.Entry) (archive.Reader, error) {
	return archive.Open(entry.Identity)
}

// FetchingOpener resolves identities through f before opening them. The
// codec is still chosen from the identity.
func FetchingOpener(f Fetcher) Opener {
	return func(ctx context.Context, entry *types.Entry) (archive.Reader, error) {
		path, err := f.Fetch(ctx, entry.Identity)
		if err != nil {
			return nil, err
		}
		return archive.OpenAs(path, archive.FormatOf(entry.Identity))
	}
}

type ManagerOption func(*Manager)

func WithLogger(log *logger.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = log
	}
}

func WithOpener(open Opener) ManagerOption {
	return func(m *Manager) {
		m.open = open
	}
}

func WithLister(l Lister) ManagerOption {
	return func(m *Manager) {
		m.lister = l
	}
}

func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) {
		m.recorder = r
	}
}

func WithThumbnails(c *thumbnail.Compositor) ManagerOption {
	return func(m *Manager) {
		m.thumbs = c
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithMosaicChildren sets how many child covers make up a directory cover.
func WithMosaicChildren(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.mosaicChildren = n
		}
	}
}
