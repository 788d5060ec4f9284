// Package resource implements the per-collection CRUD runtime: insert,
// update, delete, list, query, and their bulk counterparts, each validating
// against a compiled schema, packing through the metadata behaviors, and
// fanning out partition index writes.
package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/go-events"
	"github.com/s3db-go/s3db/common"
	"github.com/s3db-go/s3db/metadata"
	"github.com/s3db-go/s3db/objectstore"
	"github.com/s3db-go/s3db/partition"
	"github.com/s3db-go/s3db/schema"
)

// Config declares a resource: its schema, storage behavior, partitions and
// lifecycle flags.
type Config struct {
	Name            string
	Attributes      []schema.AttributeDef
	Behavior        metadata.Behavior
	MetadataBudget  int
	Partitions      []partition.Def
	Timestamps      bool
	Paranoid        bool
	AsyncPartitions bool
	// PartitionConcurrency bounds the partition engine's fan-out pool
	// (partition.concurrency, default 10).
	PartitionConcurrency int
	// SchemaVersion is recorded on every packed object's "_s" metadata key,
	// letting Unpack evolve its behavior across schema revisions.
	SchemaVersion int
}

// Resource is a named collection: a compiled schema, a packing policy, and
// the partition engine and hooks that implement CRUD semantics over an
// object-store Client.
type Resource struct {
	Name          string
	Schema        *schema.Schema
	Policy        metadata.Policy
	Timestamps    bool
	Paranoid      bool
	SchemaVersion int

	store      objectstore.Client
	keys       *objectstore.KeyBuilder
	partitions *partition.Engine
	hooks      *hookRegistry
	emitter    events.EventEmmiter
	logger     *common.ContextLogger
	now        func() time.Time
}

// New compiles cfg's schema, constructs its partition engine (if any
// partitions are declared), and returns a ready-to-use Resource.
func New(cfg Config, store objectstore.Client, keys *objectstore.KeyBuilder) (*Resource, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("resource: config missing a name")
	}

	attrs := append([]schema.AttributeDef(nil), cfg.Attributes...)
	if cfg.Timestamps {
		attrs = append(attrs,
			schema.AttributeDef{Name: "createdAt", Type: "date"},
			schema.AttributeDef{Name: "updatedAt", Type: "date"},
		)
	}
	if cfg.Paranoid {
		attrs = append(attrs, schema.AttributeDef{Name: "deletedAt", Type: "date"})
	}

	s, err := schema.Compile(attrs)
	if err != nil {
		return nil, fmt.Errorf("resource %q: %w", cfg.Name, err)
	}

	var engine *partition.Engine
	if len(cfg.Partitions) > 0 {
		engine, err = partition.New(cfg.Name, s, cfg.Partitions, store, keys, partition.Options{
			Async:       cfg.AsyncPartitions,
			Concurrency: cfg.PartitionConcurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", cfg.Name, err)
		}
	}

	return &Resource{
		Name:          cfg.Name,
		Schema:        s,
		Policy:        metadata.Policy{Behavior: cfg.Behavior, Budget: cfg.MetadataBudget},
		Timestamps:    cfg.Timestamps,
		Paranoid:      cfg.Paranoid,
		SchemaVersion: cfg.SchemaVersion,

		store:      store,
		keys:       keys,
		partitions: engine,
		hooks:      newHookRegistry(),
		emitter:    NewEmitter(),
		logger:     common.NewContextLogger(nil, map[string]interface{}{"component": "resource", "resource": cfg.Name}),
		now:        time.Now,
	}, nil
}

// On registers a hook at the given point. Hooks run in registration order.
func (r *Resource) On(point HookPoint, fn HookFunc) {
	r.hooks.On(point, fn)
}

// Events returns the resource's event emitter, on which callers may
// subscribe to afterInsert/afterUpdate/afterDelete.
func (r *Resource) Events() events.EventEmmiter {
	return r.emitter
}

// Partitions exposes the resource's partition engine, or nil if none are
// declared. cmd/s3db's serve loop uses it to skip resources that have no
// partitions to reconcile.
func (r *Resource) Partitions() *partition.Engine {
	return r.partitions
}

// Reconcile verifies that every partition index object the resource's live
// records should have actually exists, re-creating any that async fan-out
// dropped. Invoked at resource open and on a periodic schedule by callers
// that use async partitions.
func (r *Resource) Reconcile(ctx context.Context) (partition.Report, error) {
	if r.partitions == nil {
		return partition.Report{}, nil
	}
	report, err := partition.NewReconciler(r.partitions).Run(ctx)
	if err != nil {
		return report, err
	}
	if report.Repaired > 0 {
		r.logger.WithField("scanned", report.Scanned).WithField("repaired", report.Repaired).
			Info("partition reconciliation repaired drift")
	}
	return report, nil
}

// PrimaryKey returns the object key of a record's primary object.
func (r *Resource) PrimaryKey(id string) string {
	return r.keys.Primary(r.Name, id)
}

func newRecordID() string {
	return uuid.NewString()
}

func cloneRecord(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
