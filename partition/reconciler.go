package partition

import (
	"context"
	"fmt"
	"strings"

	"github.com/s3db-go/s3db/metadata"
	"github.com/s3db-go/s3db/objectstore"
)

// Reconciler periodically scans a resource's primary objects and confirms
// every partition index object a live record should have actually exists,
// repairing drift left by async fan-out that was interrupted by a crash.
// The loss window is bounded by the reconciler interval.
type Reconciler struct {
	engine *Engine
}

// NewReconciler returns a Reconciler bound to engine.
func NewReconciler(engine *Engine) *Reconciler {
	return &Reconciler{engine: engine}
}

// Report summarizes one reconciliation pass.
type Report struct {
	Scanned  int
	Repaired int
}

// Run scans every primary object under the resource's prefix and, for any
// partition index object that should exist but doesn't, re-creates it. It
// pages through the full resource prefix (primaries and partitions are
// interleaved under the same prefix; non-primary keys are skipped).
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	e := r.engine
	if len(e.defs) == 0 {
		return Report{}, nil
	}

	prefix := e.keys.ResourcePrefix(e.resource)
	var report Report
	token := ""
	for {
		page, err := e.store.List(ctx, prefix, token, 500)
		if err != nil {
			return report, fmt.Errorf("partition: reconciler list: %w", err)
		}

		for _, key := range page.Keys {
			id, ok := primaryID(prefix, key)
			if !ok {
				continue
			}
			report.Scanned++

			obj, err := e.store.Get(ctx, key)
			if err != nil {
				// Object disappeared between List and Get (e.g. deleted
				// concurrently); nothing to reconcile.
				continue
			}

			record, err := metadata.Unpack(e.schema, obj.Metadata, obj.Body)
			if err != nil {
				e.logger.WithField("id", id).WithError(err).Warn("reconciler: failed to unpack record, skipping")
				continue
			}

			repaired, err := r.repair(ctx, id, record)
			if err != nil {
				e.logger.WithField("id", id).WithError(err).Warn("reconciler: failed to repair partition index")
				continue
			}
			report.Repaired += repaired
		}

		if !page.IsTruncated {
			break
		}
		token = page.ContinuationToken
	}

	return report, nil
}

func (r *Reconciler) repair(ctx context.Context, id string, record map[string]interface{}) (int, error) {
	e := r.engine
	repaired := 0
	for _, def := range e.defs {
		key, err := e.indexKey(def, id, record)
		if err != nil {
			return repaired, err
		}
		exists, err := e.store.Exists(ctx, key)
		if err != nil {
			return repaired, err
		}
		if exists {
			continue
		}
		if _, err := e.store.Put(ctx, key, nil, nil, objectstore.PutOptions{ContentType: "application/octet-stream"}); err != nil {
			return repaired, fmt.Errorf("partition: reconciler put %q: %w", key, err)
		}
		repaired++
	}
	return repaired, nil
}

// primaryID reports whether key is a primary object under prefix (its next
// path segment after prefix is "id=<...>", as opposed to "partition=..."),
// returning the decoded id.
func primaryID(prefix, key string) (string, bool) {
	rest := strings.TrimPrefix(key, prefix+"/")
	if rest == key {
		return "", false
	}
	segment := rest
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		segment = rest[:idx]
	}
	if !strings.HasPrefix(segment, "id=") {
		return "", false
	}
	return strings.TrimPrefix(segment, "id="), true
}
