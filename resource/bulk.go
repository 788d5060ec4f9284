package resource

import (
	"context"
	"sync"
)

// defaultBulkConcurrency bounds how many items of a bulk operation run
// concurrently when the caller doesn't specify one.
const defaultBulkConcurrency = 10

// BulkResult reports one item's outcome within a bulk operation: each item
// succeeds or fails independently.
type BulkResult struct {
	ID     string
	Record map[string]interface{}
	Err    error
}

// InsertMany inserts every record in records with bounded concurrency.
// Each insert succeeds or fails on its own; results are returned in the
// same order as records.
func (r *Resource) InsertMany(ctx context.Context, records []map[string]interface{}, concurrency int) []BulkResult {
	return runBounded(ctx, len(records), concurrency, func(i int) BulkResult {
		record := records[i]
		id, _ := record["id"].(string)
		out, err := r.Insert(ctx, record)
		if err != nil {
			return BulkResult{ID: id, Err: err}
		}
		return BulkResult{ID: out["id"].(string), Record: out}
	})
}

// UpdateManyItem pairs an id with the patch to apply to it.
type UpdateManyItem struct {
	ID    string
	Patch map[string]interface{}
}

// UpdateMany applies each item's patch with bounded concurrency.
func (r *Resource) UpdateMany(ctx context.Context, items []UpdateManyItem, concurrency int) []BulkResult {
	return runBounded(ctx, len(items), concurrency, func(i int) BulkResult {
		item := items[i]
		out, err := r.Update(ctx, item.ID, item.Patch)
		if err != nil {
			return BulkResult{ID: item.ID, Err: err}
		}
		return BulkResult{ID: item.ID, Record: out}
	})
}

// DeleteMany deletes every id with bounded concurrency.
func (r *Resource) DeleteMany(ctx context.Context, ids []string, concurrency int) []BulkResult {
	return runBounded(ctx, len(ids), concurrency, func(i int) BulkResult {
		id := ids[i]
		if err := r.Delete(ctx, id); err != nil {
			return BulkResult{ID: id, Err: err}
		}
		return BulkResult{ID: id}
	})
}

// GetMany reads every id with bounded concurrency, reporting a NotFound
// error per-item rather than failing the whole batch.
func (r *Resource) GetMany(ctx context.Context, ids []string, concurrency int) []BulkResult {
	return runBounded(ctx, len(ids), concurrency, func(i int) BulkResult {
		id := ids[i]
		record, err := r.Get(ctx, id)
		if err != nil {
			return BulkResult{ID: id, Err: err}
		}
		return BulkResult{ID: id, Record: record}
	})
}

// runBounded runs fn(0..n) with at most concurrency in flight at once,
// preserving input order in the returned slice.
func runBounded(ctx context.Context, n, concurrency int, fn func(i int) BulkResult) []BulkResult {
	if concurrency <= 0 {
		concurrency = defaultBulkConcurrency
	}
	results := make([]BulkResult, n)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				results[i] = BulkResult{Err: ctx.Err()}
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()
			results[i] = fn(i)
		}(i)
	}

	wg.Wait()
	return results
}
