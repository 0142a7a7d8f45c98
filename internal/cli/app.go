// Package cli wires the loader, its stores and its sources into the
// operations behind the comicloader commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"comicloader/internal/cache"
	"comicloader/internal/core/logger"
	"comicloader/internal/core/types"
	"comicloader/internal/library"
	"comicloader/internal/loader"
	"comicloader/internal/metrics"
	"comicloader/internal/source"
	"comicloader/internal/thumbnail"
	"comicloader/internal/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ErrCancelled is returned when a request finished as cancelled.
var ErrCancelled = errors.New("request cancelled")

type App struct {
	cfg      *types.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	http     *transport.HTTPTransfer

	store   *cache.Store
	fetcher *source.Fetcher
	library *library.Store
	manager *loader.Manager
}

type Option func(*App)

func WithLogger(log *logger.Logger) Option {
	return func(a *App) {
		a.log = log
	}
}

// WithHTTPTransfer replaces the transfer used for http(s) identities.
func WithHTTPTransfer(ht *transport.HTTPTransfer) Option {
	return func(a *App) {
		a.http = ht
	}
}

// New opens the caches and the library database and starts a loader.
func New(ctx context.Context, cfg *types.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		log:      logger.NewLogger(logger.WithName("comicloader")),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	store, err := cache.NewStore(cfg.Cache.ThumbnailDir, cfg.Cache.PageDir,
		cache.WithStoreLogger(a.log.Named("cache")),
		cache.WithStoreMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	a.store = store

	lib, err := library.Open(cfg.Library.Database, a.log.Named("library"))
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	a.library = lib

	fetcherOpts := []source.FetcherOption{
		source.WithFetcherLogger(a.log.Named("source")),
		source.WithFetcherMetrics(a.metrics),
	}
	if a.http != nil {
		fetcherOpts = append(fetcherOpts, source.WithHTTPTransfer(a.http))
	}
	a.fetcher = source.NewFetcher(cfg.Sources, cfg.Cache.SpoolDir, fetcherOpts...)

	a.manager = loader.NewManager(ctx, store,
		loader.WithLogger(a.log.Named("loader")),
		loader.WithOpener(loader.FetchingOpener(a.fetcher)),
		loader.WithRecorder(lib),
		loader.WithThumbnails(thumbnail.NewCompositor(cfg.Thumbnail, a.log.Named("thumbnail"))),
		loader.WithMetrics(a.metrics),
		loader.WithMosaicChildren(cfg.Thumbnail.MosaicChildren),
	)
	return a, nil
}

// Close stops the loader and closes the library database.
func (a *App) Close() error {
	return errors.Join(a.manager.Close(), a.library.Close())
}

// ServeMetrics exposes the registry on the configured address until ctx is
// done. It returns at once when no address is configured.
func (a *App) ServeMetrics(ctx context.Context) error {
	if a.cfg.MetricsAddr == "" {
		return nil
	}
	return metrics.Server(ctx, a.cfg.MetricsAddr, a.registry, a.log.Named("metrics"))
}

// Entry resolves identity into an entry. Local paths are made absolute and
// may name a directory; everything else is an archive. Known page counts
// and reading positions are restored from the library.
func (a *App) Entry(ctx context.Context, identity string) (*types.Entry, error) {
	loc, err := source.Parse(identity)
	if err != nil {
		return nil, err
	}
	isDir := false
	if loc.Kind == source.KindLocal {
		abs, err := filepath.Abs(loc.Path)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		identity, isDir = abs, info.IsDir()
	}

	entry := types.NewEntry(identity, isDir)
	if !isDir {
		if err := a.library.Load(ctx, entry); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// Cover makes the cover of entry available and returns its path.
func (a *App) Cover(ctx context.Context, entry *types.Entry) (string, error) {
	var (
		mu   sync.Mutex
		path string
	)
	done := make(chan loader.Finished, 1)
	a.manager.RequestCover(entry,
		loader.ListenerFunc(func(p loader.Progress) {
			mu.Lock()
			path = p.Path
			mu.Unlock()
		}),
		func(f loader.Finished) { done <- f },
	)

	if err := finishedErr(a.wait(ctx, done)); err != nil {
		return "", err
	}
	mu.Lock()
	defer mu.Unlock()
	return path, nil
}

// Pages extracts count pages of entry from start, calling onPage for every
// page as it lands. The start page is remembered as the reading position.
func (a *App) Pages(ctx context.Context, entry *types.Entry, start, count int, onPage func(loader.Progress)) (loader.Finished, error) {
	done := make(chan loader.Finished, 1)
	a.manager.RequestPages(entry, start, count, loader.ListenerFunc(onPage), func(f loader.Finished) { done <- f })

	f := a.wait(ctx, done)
	if err := finishedErr(f); err != nil {
		return f, err
	}
	entry.CurrentPage = max(0, start)
	if err := a.library.SetCurrentPage(ctx, entry, entry.CurrentPage); err != nil {
		a.log.Warn("failed to record reading position", "entry", entry, "error", err)
	}
	if limit := a.cfg.Cache.MaxPageSize; limit > 0 {
		if _, err := a.Trim(limit, entry.Hashkey); err != nil {
			a.log.Warn("failed to trim page cache", "error", err)
		}
	}
	return f, nil
}

// wait returns the outcome delivered on done. When ctx ends first every
// outstanding request is dropped and the cancelled outcome is returned.
func (a *App) wait(ctx context.Context, done <-chan loader.Finished) loader.Finished {
	select {
	case f := <-done:
		return f
	case <-ctx.Done():
		a.manager.Clean()
		return <-done
	}
}

func finishedErr(f loader.Finished) error {
	switch f.Result {
	case types.ResultSuccess:
		return nil
	case types.ResultCancelled:
		return fmt.Errorf("%s: %w", f.Entry, ErrCancelled)
	default:
		return fmt.Errorf("%s: %w", f.Entry, f.Err)
	}
}
