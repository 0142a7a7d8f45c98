package cache

import (
	"cmp"
	"container/list"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"comicloader/internal/core/types"
)

// lruList orders the page sets of cached comics by last use, most recent
// at the front, and tracks their total size.
type lruList struct {
	usage     types.Bytes
	items     map[string]*list.Element
	evictList *list.List
}

type lruEntry struct {
	hashkey string
	size    types.Bytes
}

func newLRUList() *lruList {
	return &lruList{
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// add records size more bytes for hashkey and marks it most recently used.
func (c *lruList) add(hashkey string, size types.Bytes) {
	c.usage += size
	if elem, ok := c.items[hashkey]; ok {
		elem.Value.(*lruEntry).size += size
		c.evictList.MoveToFront(elem)
		return
	}
	c.items[hashkey] = c.evictList.PushFront(&lruEntry{hashkey: hashkey, size: size})
}

// evictOver pops least recently used page sets until usage fits capacity.
// Keys in keep are never popped.
func (c *lruList) evictOver(capacity types.Bytes, keep map[string]bool) []lruEntry {
	var out []lruEntry
	for elem := c.evictList.Back(); elem != nil && c.usage > capacity; {
		prev := elem.Prev()
		entry := elem.Value.(*lruEntry)
		if !keep[entry.hashkey] {
			c.usage -= entry.size
			delete(c.items, entry.hashkey)
			c.evictList.Remove(elem)
			out = append(out, *entry)
		}
		elem = prev
	}
	return out
}

// TrimResult reports what TrimPages removed.
type TrimResult struct {
	Comics int
	Freed  types.Bytes
	Left   types.Bytes
}

type pageFile struct {
	hashkey string
	size    types.Bytes
	modTime time.Time
}

// TrimPages removes the pages of the least recently extracted comics until
// the page cache holds at most capacity bytes. Pages of the hashkeys in
// keep survive even when that leaves the cache above capacity. Covers are
// never removed.
func (s *Store) TrimPages(capacity types.Bytes, keep ...string) (TrimResult, error) {
	var files []pageFile
	err := filepath.WalkDir(s.pageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, pageExt) {
			return nil
		}
		hashkey, _, ok := strings.Cut(d.Name(), ".")
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, pageFile{hashkey: hashkey, size: types.Bytes(info.Size()), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return TrimResult{}, fmt.Errorf("failed to scan page cache: %w", err)
	}

	slices.SortFunc(files, func(a, b pageFile) int {
		return a.modTime.Compare(b.modTime)
	})
	lru := newLRUList()
	for _, f := range files {
		lru.add(f.hashkey, f.size)
	}

	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}

	var res TrimResult
	var errs []error
	evicted := lru.evictOver(capacity, keepSet)
	slices.SortFunc(evicted, func(a, b lruEntry) int { return cmp.Compare(a.hashkey, b.hashkey) })
	for _, e := range evicted {
		if err := s.evictPages(e.hashkey); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Comics++
		res.Freed += e.size
		s.logger.Debug("trimmed pages", "hashkey", e.hashkey, "size", e.size)
	}
	res.Left = lru.usage
	return res, errors.Join(errs...)
}

func (s *Store) evictPages(hashkey string) error {
	matches, err := filepath.Glob(filepath.Join(s.pageDir, hashkey+".*"+pageExt))
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
