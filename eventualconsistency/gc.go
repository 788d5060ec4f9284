package eventualconsistency

import (
	"context"
	"fmt"
	"time"

	"github.com/s3db-go/s3db/resource"
)

// runGC is the garbage-collection loop: periodically hard-deletes applied
// transactions past the retention window. It never touches applied=false
// transactions regardless of age.
func (p *Plugin) runGC(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.GarbageCollection.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runGCSweep(ctx)
		}
	}
}

func (p *Plugin) runGCSweep(ctx context.Context) {
	if _, err := p.GCOnce(ctx); err != nil {
		p.logger.WithError(err).Warn("gc sweep failed")
	}
}

// GCOnce runs a single garbage-collection sweep across every configured
// (resource, field) immediately, rather than waiting for the next ticker
// fire. Exposed for operators driving GC by hand, e.g. from `s3db gc`.
// Returns the deleted-transaction count per "resource.field".
func (p *Plugin) GCOnce(ctx context.Context) (map[string]int, error) {
	p.mu.RLock()
	targets := make([]*target, 0, len(p.targets))
	for _, t := range p.targets {
		targets = append(targets, t)
	}
	p.mu.RUnlock()

	cutoff := clockNow().Add(-p.cfg.GarbageCollection.retention())

	counts := make(map[string]int)
	var firstErr error
	for _, t := range targets {
		for _, field := range t.fields {
			deleted, err := p.gcField(ctx, t, field, cutoff)
			key := t.name + "." + field
			if err != nil {
				p.logger.WithField("resource", t.name).WithField("field", field).WithError(err).Warn("gc sweep failed")
				p.emit(EventGCError, map[string]interface{}{"resource": t.name, "field": field, "error": err.Error()})
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			counts[key] = deleted
			if deleted > 0 {
				p.emit(EventGCCompleted, map[string]interface{}{"resource": t.name, "field": field, "deletedCount": deleted})
			}
		}
	}
	return counts, firstErr
}

// gcField deletes every applied transaction for (resource, field) whose
// appliedAt precedes cutoff. Unapplied transactions survive regardless of
// age: they still carry value nothing else has recorded.
func (p *Plugin) gcField(ctx context.Context, t *target, field string, cutoff time.Time) (int, error) {
	txRes := t.transactions[field]

	var toDelete []string
	cursor := ""
	for {
		page, err := txRes.List(ctx, resource.ListOptions{Cursor: cursor, Limit: 1000})
		if err != nil {
			return 0, err
		}
		for _, rec := range page.Records {
			applied, _ := rec["applied"].(bool)
			if !applied {
				continue
			}
			appliedAtRaw, ok := rec["appliedAt"]
			if !ok || appliedAtRaw == nil {
				continue
			}
			appliedAt, err := parseTimestamp(appliedAtRaw)
			if err != nil || !appliedAt.Before(cutoff) {
				continue
			}
			id, _ := rec["id"].(string)
			toDelete = append(toDelete, id)
		}
		if !page.IsTruncated {
			break
		}
		cursor = page.ContinuationToken
	}

	if len(toDelete) == 0 {
		return 0, nil
	}

	results := txRes.DeleteMany(ctx, toDelete, p.cfg.Consolidation.markAppliedConcurrency())
	deleted := 0
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		deleted++
	}
	if firstErr != nil {
		return deleted, fmt.Errorf("%w: %v", ErrGC, firstErr)
	}
	return deleted, nil
}
