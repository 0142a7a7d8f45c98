package cli

import (
	"context"
	"errors"
	"path/filepath"

	"comicloader/internal/cache"
	"comicloader/internal/core/types"
	"comicloader/internal/library"
	"comicloader/internal/source"
)

// Evict removes everything cached for identity: cover, pages, the spooled
// copy of a remote archive and the library record.
func (a *App) Evict(ctx context.Context, identity string) error {
	if loc, err := source.Parse(identity); err == nil && loc.Kind == source.KindLocal {
		if abs, err := filepath.Abs(loc.Path); err == nil {
			identity = abs
		}
	}
	return errors.Join(
		a.store.Evict(types.Hashkey(identity)),
		a.fetcher.Forget(identity),
		a.library.Forget(ctx, identity),
	)
}

// Prune evicts every recorded comic whose archive disappeared and returns
// their identities.
func (a *App) Prune(ctx context.Context) ([]string, error) {
	comics, err := a.library.Comics(ctx)
	if err != nil {
		return nil, err
	}
	var pruned []string
	var errs []error
	for _, c := range comics {
		if a.fetcher.Exists(c.Identity) {
			continue
		}
		if err := a.Evict(ctx, c.Identity); err != nil {
			errs = append(errs, err)
			continue
		}
		a.log.Debug("pruned comic", "identity", c.Identity)
		pruned = append(pruned, c.Identity)
	}
	return pruned, errors.Join(errs...)
}

// Stats summarises the cache and the library.
type Stats struct {
	cache.Usage
	Comics int
}

func (a *App) Stats(ctx context.Context) (Stats, error) {
	usage, err := a.store.Usage()
	if err != nil {
		return Stats{}, err
	}
	comics, err := a.library.Comics(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Usage: usage, Comics: len(comics)}, nil
}

// Comics lists what the library knows.
func (a *App) Comics(ctx context.Context) ([]library.Comic, error) {
	return a.library.Comics(ctx)
}

// Trim shrinks the page cache to limit bytes, dropping the pages of the
// least recently extracted comics first. Pages of keep survive.
func (a *App) Trim(limit types.Bytes, keep ...string) (cache.TrimResult, error) {
	res, err := a.store.TrimPages(limit, keep...)
	if res.Comics > 0 {
		a.log.Info("trimmed page cache", "comics", res.Comics, "freed", res.Freed, "left", res.Left)
	}
	return res, err
}
