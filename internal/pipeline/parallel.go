package pipeline

import (
	"context"
	"sync"

	"polytrain/internal/config"
	"polytrain/internal/services"
)

// forEachItem runs fn over every item through a bounded worker pool. All
// items are awaited even after a failure so no worker outlives the call; the
// first error wins and is returned with its item annotated in context.
func forEachItem(ctx context.Context, items []config.Item, workers int, fn func(context.Context, config.Item) error) error {
	if workers <= 0 {
		workers = 1
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, workers)
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item config.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed {
				return
			}

			if err := fn(services.WithItem(ctx, item.ID), item); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()
	return firstErr
}
