package loader

import (
	"context"
	"errors"
	"fmt"

	"comicloader/internal/archive"
	"comicloader/internal/core/types"
	"comicloader/internal/runner"
)

var ErrNoPages = errors.New("archive has no pages")

// execute runs on the worker. It must not touch manager state except
// through deliver.
func (m *Manager) execute(ctx context.Context, job *runner.Job, t *task) error {
	switch t.kind {
	case kindPages:
		job.Tracker().SetTotal(int64(len(t.indices)))
		return m.extractPages(ctx, t)
	case kindCover:
		job.Tracker().SetTotal(1)
		if t.entry.IsDir {
			return m.composeMosaic(ctx, t)
		}
		return m.extractCover(ctx, t)
	default:
		return fmt.Errorf("unknown job kind %d", t.kind)
	}
}

func (m *Manager) extractPages(ctx context.Context, t *task) error {
	entry := t.entry
	if m.servedFromCache(t) {
		return nil
	}

	r, err := m.open(ctx, entry)
	if err != nil {
		return err
	}
	defer r.Close()

	total := len(r.Pages())
	t.total = total
	m.notePageCount(ctx, entry, total)

	sink := m.store.Pages(entry.Hashkey)
	_, err = archive.ExtractMany(ctx, r, t.indices, sink, func(index int, path string, origin types.Origin) {
		m.deliver(t, types.PageKey(entry.Hashkey, index), total, path, origin)
	})
	return err
}

// servedFromCache delivers every requested page without opening the
// archive when the page count is known and all pages are cached.
func (m *Manager) servedFromCache(t *task) bool {
	total := t.entry.PageCount()
	if total == 0 {
		return false
	}
	var keys []types.CacheKey
	for _, i := range t.indices {
		if i >= total {
			continue
		}
		key := types.PageKey(t.entry.Hashkey, i)
		if !m.store.Exists(key) {
			return false
		}
		keys = append(keys, key)
	}
	t.total = total
	for _, key := range keys {
		m.deliver(t, key, total, m.store.PathFor(key), types.OriginCached)
	}
	return true
}

func (m *Manager) extractCover(ctx context.Context, t *task) error {
	entry := t.entry
	r, err := m.open(ctx, entry)
	if err != nil {
		return err
	}
	defer r.Close()

	total := len(r.Pages())
	t.total = total
	m.notePageCount(ctx, entry, total)
	if total == 0 {
		return fmt.Errorf("%s: %w", entry, ErrNoPages)
	}

	data, err := r.ReadPage(ctx, 0)
	if err != nil {
		return err
	}
	png, err := m.thumbs.Cover(data)
	if err != nil {
		return fmt.Errorf("cover of %s: %w", entry, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.writeCover(t, png)
}

// composeMosaic builds a directory cover from whatever child covers are
// cached by now.
func (m *Manager) composeMosaic(ctx context.Context, t *task) error {
	var layers [][]byte
	for _, child := range t.cover.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := m.store.Read(types.CoverKey(child.Hashkey))
		if err != nil {
			m.logger.Debug("child cover unavailable", "dir", t.entry, "child", child, "error", err)
			continue
		}
		layers = append(layers, data)
	}
	png, err := m.thumbs.Mosaic(layers)
	if err != nil {
		return fmt.Errorf("mosaic of %s: %w", t.entry, err)
	}
	return m.writeCover(t, png)
}

func (m *Manager) writeCover(t *task, png []byte) error {
	key := types.CoverKey(t.entry.Hashkey)
	path, err := m.store.Write(key, png)
	if err != nil {
		return err
	}
	t.job.Tracker().AddWritten(int64(len(png)))
	m.deliver(t, key, t.entry.PageCount(), path, types.OriginExtracted)
	return nil
}

func (m *Manager) notePageCount(ctx context.Context, entry *types.Entry, n int) {
	entry.SetPageCount(n)
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordPageCount(ctx, entry, n); err != nil {
		m.logger.Warn("failed to record page count", "entry", entry, "pages", n, "error", err)
	}
}
