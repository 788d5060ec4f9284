package eventualconsistency

import (
	"context"
	"time"

	"github.com/s3db-go/s3db/resource"
)

// runScheduler is the auto-consolidation loop: every
// consolidation.interval, scan each configured target for distinct record
// ids with pending transactions and launch consolidators with bounded
// parallelism.
func (p *Plugin) runScheduler(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Consolidation.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runScheduledSweep(ctx)
		}
	}
}

func (p *Plugin) runScheduledSweep(ctx context.Context) {
	p.mu.RLock()
	targets := make([]*target, 0, len(p.targets))
	for _, t := range p.targets {
		targets = append(targets, t)
	}
	p.mu.RUnlock()

	for _, t := range targets {
		for _, field := range t.fields {
			ids, err := p.pendingRecordIDs(ctx, t, field)
			if err != nil {
				p.logger.WithField("resource", t.name).WithField("field", field).WithError(err).Warn("scheduled scan failed")
				continue
			}
			if len(ids) == 0 {
				continue
			}
			runBounded(ids, p.cfg.Consolidation.concurrency(), func(id string) {
				if ctx.Err() != nil {
					return
				}
				result, err := p.consolidate(ctx, t, id, field)
				if err != nil {
					p.logger.WithField("id", id).WithField("field", field).WithError(err).Warn("scheduled consolidation failed")
					p.emit(EventConsolidationError, map[string]interface{}{"resource": t.name, "field": field, "recordId": id, "error": err.Error()})
					return
				}
				_ = result
			})
		}
	}
}

// pendingRecordIDs returns the distinct originalIds with at least one
// applied=false transaction, derived by paging the transaction log. The
// byOriginalIdAndApplied partition only supports prefix scans restricted
// to a leading contiguous subset of its fields, so scanning by applied
// alone (skipping originalId) isn't expressible as a partition query; a
// full paginated scan of the small, append-only transaction log is cheap
// enough for this distinct-id derivation.
func (p *Plugin) pendingRecordIDs(ctx context.Context, t *target, field string) ([]string, error) {
	txRes := t.transactions[field]

	seen := make(map[string]bool)
	var ids []string
	cursor := ""
	for {
		page, err := txRes.List(ctx, resource.ListOptions{Cursor: cursor, Limit: 1000})
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			applied, _ := rec["applied"].(bool)
			if applied {
				continue
			}
			id, _ := rec["originalId"].(string)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if !page.IsTruncated {
			break
		}
		cursor = page.ContinuationToken
	}
	return ids, nil
}
