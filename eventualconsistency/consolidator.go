package eventualconsistency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/s3db-go/s3db/lock"
	"github.com/s3db-go/s3db/objectstore"
	"github.com/s3db-go/s3db/resource"
)

// outcomeKind is the typed result of one Consolidate call. A locked
// record or a missing target is a skip, not an error: the scheduler's
// outer loop switches on kind and moves on.
type outcomeKind string

const (
	outcomeApplied       outcomeKind = "applied"
	outcomeNoop          outcomeKind = "noop"
	outcomeSkippedLocked outcomeKind = "skipped-locked"
	outcomeSkippedTarget outcomeKind = "skipped-missing-target"
)

// ConsolidateResult reports what a Consolidate call did.
type ConsolidateResult struct {
	Kind         outcomeKind
	Value        float64
	AppliedCount int
}

// Consolidate folds every pending transaction for (record, field) into
// the primary record under an exclusive lock, marks them applied, updates
// analytics, and writes a checkpoint.
func (p *Plugin) Consolidate(ctx context.Context, resourceName, id, field string) (ConsolidateResult, error) {
	t, err := p.target(resourceName)
	if err != nil {
		return ConsolidateResult{}, err
	}
	if !t.hasField(field) {
		return ConsolidateResult{}, fmt.Errorf("%w: %s.%s", ErrUnknownTarget, resourceName, field)
	}
	return p.consolidate(ctx, t, id, field)
}

func (p *Plugin) consolidate(ctx context.Context, t *target, id, field string) (ConsolidateResult, error) {
	start := clockNow()
	lockName := t.name + ":" + id + ":" + field
	lease, err := p.lockMgr.Acquire(ctx, lockName, p.owner, p.cfg.Locks.timeout())
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return ConsolidateResult{Kind: outcomeSkippedLocked}, nil
		}
		return ConsolidateResult{}, fmt.Errorf("eventualconsistency: acquire lock %q: %w", lockName, err)
	}
	defer func() {
		if rerr := p.lockMgr.Release(ctx, lease); rerr != nil && !errors.Is(rerr, lock.ErrStale) {
			p.logger.WithField("lock", lockName).WithError(rerr).Warn("failed releasing consolidation lock")
		}
	}()

	pending, err := p.loadPendingTransactions(ctx, t, field, id)
	if err != nil {
		return ConsolidateResult{}, err
	}
	if len(pending) == 0 {
		return ConsolidateResult{Kind: outcomeNoop}, nil
	}

	repaired, err := p.repairFromCheckpoint(ctx, t, field, id, &pending)
	if err != nil {
		return ConsolidateResult{}, err
	}
	if len(pending) == 0 {
		return ConsolidateResult{Kind: outcomeApplied, AppliedCount: repaired}, nil
	}

	rec, err := t.resource.Get(ctx, id)
	if errors.Is(err, resource.ErrNotFound) {
		// The target may not exist yet; transactions remain pending and
		// are retried on the next scheduling tick. They are never lost,
		// and the record is never auto-created here.
		return ConsolidateResult{Kind: outcomeSkippedTarget}, nil
	}
	if err != nil {
		return ConsolidateResult{}, err
	}

	sortTransactions(pending)
	current := fieldValue(rec, field)
	consolidated := fold(current, pending)

	if err := p.updatePrimaryWithRetry(ctx, t.resource, id, rec, field, consolidated); err != nil {
		return ConsolidateResult{}, fmt.Errorf("%w: %v", ErrConsolidation, err)
	}

	p.markApplied(ctx, t, field, pending)

	if err := p.applyAnalytics(ctx, t, field, pending); err != nil {
		p.logger.WithField("id", id).WithField("field", field).WithError(err).Warn("analytics update failed")
	}

	minID, maxID := pending[0].ID, pending[len(pending)-1].ID
	now := clockNow()
	cp := checkpoint{
		Cohort:    computeCohorts(now, p.cfg.Cohort.location()).Hour,
		Value:     consolidated,
		MinTxID:   minID,
		MaxTxID:   maxID,
		CreatedAt: now,
	}
	if err := p.writeCheckpoint(ctx, t, field, id, cp); err != nil {
		p.logger.WithField("id", id).WithField("field", field).WithError(err).Warn("checkpoint write failed")
	}

	p.emit(EventConsolidated, map[string]interface{}{
		"resource":     t.name,
		"field":        field,
		"recordCount":  len(pending),
		"successCount": len(pending),
		"errorCount":   0,
		"duration":     clockNow().Sub(start).String(),
	})

	return ConsolidateResult{Kind: outcomeApplied, Value: consolidated, AppliedCount: len(pending) + repaired}, nil
}

// repairFromCheckpoint drops from *pending any transaction already covered
// by id's checkpoint range and re-marks it applied. Transaction ids are
// creation-time ordered, so an unapplied transaction with id <= the
// checkpoint's maxTxId was folded into the primary by a consolidation that
// wrote its checkpoint but crashed partway through marking the batch;
// folding it again would double-count it. Returns how many were repaired.
func (p *Plugin) repairFromCheckpoint(ctx context.Context, t *target, field, id string, pending *[]transaction) (int, error) {
	cp, ok, err := p.loadCheckpoint(ctx, t, field, id)
	if err != nil {
		return 0, fmt.Errorf("eventualconsistency: load checkpoint: %w", err)
	}
	if !ok || cp.MaxTxID == "" {
		return 0, nil
	}

	fresh := (*pending)[:0:0]
	var stale []transaction
	for _, tx := range *pending {
		if tx.ID <= cp.MaxTxID {
			stale = append(stale, tx)
		} else {
			fresh = append(fresh, tx)
		}
	}
	if len(stale) > 0 {
		p.logger.WithField("id", id).WithField("field", field).WithField("count", len(stale)).
			Info("re-marking transactions already folded per checkpoint")
		p.markApplied(ctx, t, field, stale)
	}
	*pending = fresh
	return len(stale), nil
}

// loadPendingTransactions lists transactions for (id, field) with
// applied=false, restricted to the configured consolidation window.
func (p *Plugin) loadPendingTransactions(ctx context.Context, t *target, field, id string) ([]transaction, error) {
	txRes := t.transactions[field]
	records, err := txRes.Query(ctx, "byOriginalIdAndApplied", map[string]interface{}{"originalId": id, "applied": false})
	if err != nil {
		return nil, fmt.Errorf("eventualconsistency: list pending transactions: %w", err)
	}

	cutoff := clockNow().Add(-p.cfg.Consolidation.window())
	out := make([]transaction, 0, len(records))
	for _, rec := range records {
		tx, err := transactionFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if tx.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// updatePrimaryWithRetry applies the folded value to the primary record,
// retrying transient object-store failures with exponential backoff and
// jitter. Permanent failures abort immediately.
func (p *Plugin) updatePrimaryWithRetry(ctx context.Context, res *resource.Resource, id string, rec map[string]interface{}, field string, value float64) error {
	patch := buildFieldPatch(rec, field, value)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		_, err := res.Update(ctx, id, patch)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, objectstore.ErrTransient) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	return err
}

// markApplied flags every consolidated transaction applied=true with
// bounded concurrency (markAppliedConcurrency, default 50).
func (p *Plugin) markApplied(ctx context.Context, t *target, field string, txs []transaction) {
	txRes := t.transactions[field]
	now := clockNow()
	runBounded(txs, p.cfg.Consolidation.markAppliedConcurrency(), func(tx transaction) {
		_, err := txRes.Update(ctx, tx.ID, map[string]interface{}{
			"applied":   true,
			"appliedAt": now.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			p.logger.WithField("txId", tx.ID).WithError(err).Warn("failed marking transaction applied")
		}
	})
}
