package archive

import (
	"context"

	"comicloader/internal/core/types"
)

// Sink is where extracted pages end up, typically the page cache.
type Sink interface {
	// Lookup returns the path of a page that is already stored.
	Lookup(index int) (path string, ok bool)
	// Store writes a fully read page and returns its final path.
	Store(index int, data []byte) (path string, err error)
}

// EachFunc is called synchronously after each page became available.
type EachFunc func(index int, path string, origin types.Origin)

// ExtractMany makes the requested pages available in sink, in ascending
// index order, and returns the archive's total page count. Indices past the
// end of the archive are skipped. Pages the sink already holds are reported
// with types.OriginCached and are not decompressed.
func ExtractMany(ctx context.Context, r Reader, indices []int, sink Sink, onEach EachFunc) (int, error) {
	total := len(r.Pages())
	order := normalizeIndices(indices, total)
	if len(order) == 0 {
		return total, nil
	}

	type cached struct {
		index int
		path  string
	}
	var hits []cached
	var missing []int
	for _, index := range order {
		if path, ok := sink.Lookup(index); ok {
			hits = append(hits, cached{index, path})
		} else {
			missing = append(missing, index)
		}
	}

	// flush reports cache hits below limit so pages stay in ascending order
	flush := func(limit int) error {
		for len(hits) > 0 && hits[0].index < limit {
			if err := ctx.Err(); err != nil {
				return err
			}
			if onEach != nil {
				onEach(hits[0].index, hits[0].path, types.OriginCached)
			}
			hits = hits[1:]
		}
		return nil
	}

	err := r.ReadPages(ctx, missing, func(index int, data []byte) error {
		if err := flush(index); err != nil {
			return err
		}
		path, err := sink.Store(index, data)
		if err != nil {
			return err
		}
		if onEach != nil {
			onEach(index, path, types.OriginExtracted)
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	return total, flush(total)
}
