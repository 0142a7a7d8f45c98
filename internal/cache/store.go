package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"comicloader/internal/core/logger"
	"comicloader/internal/core/types"
	"comicloader/internal/metrics"
)

const (
	coverExt = ".png"
	pageExt  = ".jpg"
	tempExt  = ".tmp"
)

// Store maps cache keys to files on disk. The presence of the file is the
// only hit signal; there is no index to keep in sync.
type Store struct {
	thumbDir string
	pageDir  string
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

type StoreOption func(*Store)

func WithStoreLogger(log *logger.Logger) StoreOption {
	return func(s *Store) {
		s.logger = log
	}
}

func WithStoreMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a store writing covers to thumbDir and pages to pageDir.
func NewStore(thumbDir, pageDir string, opts ...StoreOption) (*Store, error) {
	if thumbDir == "" || pageDir == "" {
		return nil, fmt.Errorf("cache directories cannot be empty")
	}
	for _, dir := range []string{thumbDir, pageDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	s := &Store{
		thumbDir: thumbDir,
		pageDir:  pageDir,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PathFor returns where the image for key lives. It does no I/O.
func (s *Store) PathFor(key types.CacheKey) string {
	if key.Slot.IsCover() {
		return filepath.Join(s.thumbDir, key.Hashkey+coverExt)
	}
	return filepath.Join(s.pageDir, fmt.Sprintf("%s.%03d%s", key.Hashkey, key.Slot.Page(), pageExt))
}

// Exists reports whether the image for key has been produced.
func (s *Store) Exists(key types.CacheKey) bool {
	_, err := os.Stat(s.PathFor(key))
	hit := err == nil
	s.metrics.CacheLookup(slotKind(key.Slot), hit)
	return hit
}

// Read returns the cached image for key.
func (s *Store) Read(key types.CacheKey) ([]byte, error) {
	data, err := os.ReadFile(s.PathFor(key))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Write stores data under key and returns the final path. The file only
// appears at that path once it is complete.
func (s *Store) Write(key types.CacheKey, data []byte) (string, error) {
	fullPath := s.PathFor(key)
	tempPath := fullPath + tempExt
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	s.metrics.CacheWrite()
	s.logger.Debug("cached", "key", key, "size", types.Bytes(len(data)))
	return fullPath, nil
}

// Evict removes the cover and every page cached for hashkey.
func (s *Store) Evict(hashkey string) error {
	if hashkey == "" || strings.ContainsAny(hashkey, `*?[\/`) {
		return fmt.Errorf("invalid hashkey %q", hashkey)
	}
	pages, err := filepath.Glob(filepath.Join(s.pageDir, hashkey+".*"+pageExt))
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range append(pages, s.PathFor(types.CoverKey(hashkey))) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", path, err))
		}
	}
	if len(errs) == 0 {
		s.logger.Debug("evicted", "hashkey", hashkey, "pages", len(pages))
	}
	return errors.Join(errs...)
}

// Usage summarises what the cache currently holds.
type Usage struct {
	Covers int
	Pages  int
	Size   types.Bytes
}

// Usage walks both cache directories.
func (s *Store) Usage() (Usage, error) {
	var u Usage
	for _, dir := range []string{s.thumbDir, s.pageDir} {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// keep counting what can be read
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			switch {
			case dir == s.thumbDir && strings.HasSuffix(path, coverExt):
				u.Covers++
			case dir == s.pageDir && strings.HasSuffix(path, pageExt):
				u.Pages++
			default:
				return nil
			}
			u.Size += types.Bytes(info.Size())
			return nil
		})
		if err != nil {
			return u, fmt.Errorf("failed to calculate disk usage: %w", err)
		}
	}
	return u, nil
}

func slotKind(slot types.Slot) string {
	if slot.IsCover() {
		return "cover"
	}
	return "page"
}

// PageSink stores the pages of one archive.
type PageSink struct {
	store   *Store
	hashkey string
}

// Pages returns a sink for the pages of the archive with the given hashkey.
func (s *Store) Pages(hashkey string) *PageSink {
	return &PageSink{store: s, hashkey: hashkey}
}

func (p *PageSink) Lookup(index int) (string, bool) {
	key := types.PageKey(p.hashkey, index)
	if !p.store.Exists(key) {
		return "", false
	}
	return p.store.PathFor(key), true
}

func (p *PageSink) Store(index int, data []byte) (string, error) {
	return p.store.Write(types.PageKey(p.hashkey, index), data)
}
