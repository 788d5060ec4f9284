// Package eventualconsistency implements the EventualConsistency plugin:
// an append-only transaction log per declared numeric field, a
// consolidator that folds pending transactions into the primary record
// under an exclusive per-(resource,id,field) lock, incremental time-cohort
// analytics, checkpoints, and retention-bounded garbage collection.
package eventualconsistency

import "errors"

// ErrLockHeld names the case where another consolidator holds the
// record+field lock. Consolidate does not return it: a lock.ErrHeld from
// the lock manager becomes a skipped outcome rather than a surfaced error,
// and the work is retried on the next interval.
var ErrLockHeld = errors.New("eventualconsistency: lock held by another consolidator")

// ErrConsolidation is raised when folding pending transactions into the
// primary record fails permanently after retry.
var ErrConsolidation = errors.New("eventualconsistency: consolidation failed")

// ErrGC is raised when a garbage-collection delete fails; the scan resumes
// on the next cycle rather than aborting.
var ErrGC = errors.New("eventualconsistency: garbage collection failed")

// ErrUnknownTarget is returned when a caller names a (resource, field) pair
// the plugin was not configured with.
var ErrUnknownTarget = errors.New("eventualconsistency: resource/field not configured")
