package eventualconsistency

import "sync"

// runBounded runs fn for every item in items with at most concurrency in
// flight at once, waiting for all to finish. Same semaphore-plus-WaitGroup
// shape as partition/pool.go and resource/bulk.go; mark-applied (bounded by
// markAppliedConcurrency), analytics upserts and scheduled consolidations
// (both bounded by consolidation.concurrency) reuse it. GC deletes go
// through resource.DeleteMany instead.
func runBounded[T any](items []T, concurrency int, fn func(item T)) {
	if concurrency <= 0 {
		concurrency = 10
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item T) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(item)
		}(item)
	}
	wg.Wait()
}
