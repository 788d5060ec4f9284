package eventualconsistency

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/s3db-go/s3db/resource"
	"github.com/s3db-go/s3db/schema"
)

// analyticsResourceConfig declares the incremental cohort-analytics
// resource for one (resource, field) pair, keyed by "<period>:<cohort>".
// seenIds and opCounts are json-typed accumulators
// rather than separate resources, since they are always read alongside the
// numeric rollups they support.
func analyticsResourceConfig(resourceName, field string) resource.Config {
	return resource.Config{
		Name: analyticsResourceName(resourceName, field),
		Attributes: []schema.AttributeDef{
			{Name: "period", Type: "string", Required: true},
			{Name: "cohort", Type: "string", Required: true},
			{Name: "count", Type: "number", Required: true},
			{Name: "sum", Type: "number", Required: true},
			{Name: "min", Type: "number", Required: true},
			{Name: "max", Type: "number", Required: true},
			{Name: "avg", Type: "number", Required: true},
			{Name: "recordCount", Type: "number", Required: true},
			{Name: "seenIds", Type: "json"},
			{Name: "opCounts", Type: "json"},
		},
	}
}

// cohortDelta is the aggregate contribution of one consolidation batch to
// one (period, cohort) analytics cohort.
type cohortDelta struct {
	count    int
	sum      float64
	min, max float64
	opCounts map[string]int
	ids      map[string]bool
}

func newCohortDelta() *cohortDelta {
	return &cohortDelta{opCounts: map[string]int{}, ids: map[string]bool{}}
}

func (d *cohortDelta) add(originalID string, op Operation, value float64) {
	if d.count == 0 {
		d.min, d.max = value, value
	} else {
		if value < d.min {
			d.min = value
		}
		if value > d.max {
			d.max = value
		}
	}
	d.count++
	d.sum += value
	d.opCounts[string(op)]++
	d.ids[originalID] = true
}

// groupByCohort buckets consolidated transactions by every enabled
// period's cohort key.
func groupByCohort(txs []transaction, periods []string) map[string]map[string]*cohortDelta {
	out := make(map[string]map[string]*cohortDelta, len(periods))
	for _, period := range periods {
		cohorts := make(map[string]*cohortDelta)
		for _, tx := range txs {
			cohort := tx.Cohort.forPeriod(period)
			if cohort == "" {
				continue
			}
			d, ok := cohorts[cohort]
			if !ok {
				d = newCohortDelta()
				cohorts[cohort] = d
			}
			d.add(tx.OriginalID, tx.Operation, tx.Value)
		}
		out[period] = cohorts
	}
	return out
}

// cohortLocks serializes read-modify-write analytics updates per
// (resource, field, period, cohort): multiple consolidators for different
// record ids may touch the same cohort concurrently, and the object store
// has no native atomic increment. In-process mutual exclusion suffices
// since every consolidator runs in this process.
type cohortLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCohortLocks() *cohortLocks {
	return &cohortLocks{locks: make(map[string]*sync.Mutex)}
}

func (c *cohortLocks) lock(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// applyAnalytics upserts every touched (period, cohort) analytics record
// in parallel, through a bounded worker pool rather than unbounded
// fan-out.
func (p *Plugin) applyAnalytics(ctx context.Context, t *target, field string, txs []transaction) error {
	if !p.cfg.Analytics.Enabled || len(txs) == 0 {
		return nil
	}

	grouped := groupByCohort(txs, p.cfg.Analytics.Periods)
	type job struct {
		period, cohort string
		delta          *cohortDelta
	}
	var jobs []job
	for period, cohorts := range grouped {
		for cohort, delta := range cohorts {
			jobs = append(jobs, job{period: period, cohort: cohort, delta: delta})
		}
	}

	var mu sync.Mutex
	var firstErr error
	runBounded(jobs, p.cfg.Consolidation.concurrency(), func(j job) {
		if err := p.upsertAnalyticsCohort(ctx, t, field, j.period, j.cohort, j.delta); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("eventualconsistency: analytics upsert %s/%s: %w", j.period, j.cohort, err)
			}
			mu.Unlock()
		}
	})
	return firstErr
}

func (p *Plugin) upsertAnalyticsCohort(ctx context.Context, t *target, field, period, cohort string, delta *cohortDelta) error {
	anRes := t.analytics[field]
	recID := period + ":" + cohort
	unlock := p.cohortLocks.lock(txResourceName(t.name, field) + ":" + recID)
	defer unlock()

	current, err := anRes.Get(ctx, recID)
	isNew := errors.Is(err, resource.ErrNotFound)
	if err != nil && !isNew {
		return err
	}

	count, _ := current["count"].(float64)
	sum, _ := current["sum"].(float64)
	min, _ := current["min"].(float64)
	max, _ := current["max"].(float64)
	seen := map[string]interface{}{}
	opCounts := map[string]interface{}{}
	if !isNew {
		if s, ok := current["seenIds"].(map[string]interface{}); ok {
			seen = s
		}
		if oc, ok := current["opCounts"].(map[string]interface{}); ok {
			opCounts = oc
		}
	} else {
		min, max = delta.min, delta.max
	}

	if delta.min < min || isNew {
		min = delta.min
	}
	if delta.max > max || isNew {
		max = delta.max
	}
	count += float64(delta.count)
	sum += delta.sum
	var avg float64
	if count > 0 {
		avg = sum / count
	}
	for id := range delta.ids {
		seen[id] = true
	}
	for op, n := range delta.opCounts {
		prev, _ := opCounts[op].(float64)
		opCounts[op] = prev + float64(n)
	}

	patch := map[string]interface{}{
		"id":          recID,
		"period":      period,
		"cohort":      cohort,
		"count":       count,
		"sum":         sum,
		"min":         min,
		"max":         max,
		"avg":         avg,
		"recordCount": float64(len(seen)),
		"seenIds":     seen,
		"opCounts":    opCounts,
	}

	if isNew {
		_, err = anRes.Insert(ctx, patch)
	} else {
		delete(patch, "id")
		_, err = anRes.Update(ctx, recID, patch)
	}
	return err
}
