package cli

import (
	"context"
	"sync"

	"comicloader/internal/core/types"
	"comicloader/internal/library"
	"comicloader/internal/loader"
)

// WarmResult counts the outcomes of a library walk.
type WarmResult struct {
	Requested int
	Succeeded int
	Failed    int
	Cancelled int
}

func (r *WarmResult) add(f loader.Finished) {
	switch f.Result {
	case types.ResultSuccess:
		r.Succeeded++
	case types.ResultCancelled:
		r.Cancelled++
	default:
		r.Failed++
	}
}

// Warm requests the cover of every comic and directory under root, paced by
// the configured rate. onQueued is called for every request and onFinished
// for every outcome; either may be nil. Warm returns once all requests
// finished. When ctx ends the outstanding requests are dropped.
func (a *App) Warm(ctx context.Context, root string, onQueued func(*types.Entry), onFinished func(loader.Finished)) (WarmResult, error) {
	limiter := types.NewRateLimiter(a.cfg.Warm.Rate, types.DefaultPaceBurst)

	var (
		mu     sync.Mutex
		result WarmResult
		wg     sync.WaitGroup
	)
	finished := func(f loader.Finished) {
		mu.Lock()
		result.add(f)
		mu.Unlock()
		if onFinished != nil {
			onFinished(f)
		}
		wg.Done()
	}

	walkErr := library.Walk(ctx, root, func(entry *types.Entry) error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		mu.Lock()
		result.Requested++
		mu.Unlock()
		if onQueued != nil {
			onQueued(entry)
		}
		wg.Add(1)
		a.manager.RequestCover(entry, nil, finished)
		return nil
	})

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()
	select {
	case <-allDone:
	case <-ctx.Done():
		a.manager.Clean()
		<-allDone
	}

	mu.Lock()
	defer mu.Unlock()
	if walkErr != nil {
		return result, walkErr
	}
	return result, ctx.Err()
}
