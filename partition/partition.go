// Package partition implements the secondary-index engine: deriving
// partition key values from a record, fanning out the extra index objects a
// declared partition materializes, and serving list/query scans restricted
// to partition prefixes.
package partition

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/s3db-go/s3db/common"
	"github.com/s3db-go/s3db/metadata"
	"github.com/s3db-go/s3db/objectstore"
	"github.com/s3db-go/s3db/schema"
)

// undefinedSentinel is substituted for a partition field that is absent
// from the record being indexed.
const undefinedSentinel = "∅"

// Def declares one secondary index: an ordered list of fields whose
// concatenated, encoded values form a path segment.
type Def struct {
	Name   string
	Fields []string
}

// Options configures an Engine's fan-out mode and worker pool.
type Options struct {
	// Async, when true, submits index writes to the worker pool and returns
	// before they land. When false, fan-out is awaited before
	// Put/Update/Delete return.
	Async bool
	// Concurrency bounds the worker pool's in-flight index writes
	// (default 10).
	Concurrency int
}

// Engine derives and maintains partition index objects for one resource.
type Engine struct {
	resource string
	schema   *schema.Schema
	defs     []Def
	store    objectstore.Client
	keys     *objectstore.KeyBuilder
	async    bool
	pool     *Pool
	logger   *common.ContextLogger
}

// New constructs an Engine for resource, validating that every field named
// by every partition definition is a declared schema attribute.
func New(resource string, s *schema.Schema, defs []Def, store objectstore.Client, keys *objectstore.KeyBuilder, opts Options) (*Engine, error) {
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("partition: partition on resource %q missing a name", resource)
		}
		if len(def.Fields) == 0 {
			return nil, fmt.Errorf("partition: partition %q on resource %q declares no fields", def.Name, resource)
		}
		for _, f := range def.Fields {
			if _, ok := s.Attributes[f]; !ok {
				return nil, fmt.Errorf("partition: partition %q references unknown attribute %q", def.Name, f)
			}
		}
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	return &Engine{
		resource: resource,
		schema:   s,
		defs:     defs,
		store:    store,
		keys:     keys,
		async:    opts.Async,
		pool:     NewPool(concurrency),
		logger:   common.NewContextLogger(nil, map[string]interface{}{"component": "partition", "resource": resource}),
	}, nil
}

// Defs returns the engine's declared partitions.
func (e *Engine) Defs() []Def { return e.defs }

// indexKey derives the object key a record maps to for one partition
// definition, encoding each field through the same codec the primary
// record uses.
func (e *Engine) indexKey(def Def, id string, record map[string]interface{}) (string, error) {
	pairs := make([][2]string, len(def.Fields))
	for i, f := range def.Fields {
		attr := e.schema.Attributes[f]
		value, present := record[f]
		encoded := undefinedSentinel
		if present && value != nil {
			enc, err := metadata.EncodeAttribute(attr, value)
			if err != nil {
				return "", fmt.Errorf("partition: encode field %q: %w", f, err)
			}
			encoded = enc
		}
		pairs[i] = [2]string{f, encoded}
	}
	return e.keys.Partition(e.resource, def.Name, pairs, id), nil
}

// IndexKeys returns the full set of index object keys a record currently
// maps to, one per declared partition.
func (e *Engine) IndexKeys(id string, record map[string]interface{}) ([]string, error) {
	out := make([]string, 0, len(e.defs))
	for _, def := range e.defs {
		key, err := e.indexKey(def, id, record)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}

// Put creates every partition's index object for a newly inserted record.
// In async mode it returns once the writes are submitted, not once they
// land; in sync mode it blocks until every write has completed.
func (e *Engine) Put(ctx context.Context, id string, record map[string]interface{}) error {
	return e.fanOut(ctx, id, func() error {
		for _, def := range e.defs {
			key, err := e.indexKey(def, id, record)
			if err != nil {
				return err
			}
			if _, err := e.store.Put(ctx, key, nil, nil, objectstore.PutOptions{ContentType: "application/octet-stream"}); err != nil {
				return fmt.Errorf("partition: put index %q: %w", key, err)
			}
		}
		return nil
	})
}

// Update reconciles partition index objects after a record changes: for
// each partition whose computed key differs between prior and updated,
// the old index object is deleted and the new one is put.
func (e *Engine) Update(ctx context.Context, id string, prior, updated map[string]interface{}) error {
	return e.fanOut(ctx, id, func() error {
		for _, def := range e.defs {
			oldKey, err := e.indexKey(def, id, prior)
			if err != nil {
				return err
			}
			newKey, err := e.indexKey(def, id, updated)
			if err != nil {
				return err
			}
			if oldKey == newKey {
				continue
			}
			if err := e.store.Delete(ctx, oldKey); err != nil {
				return fmt.Errorf("partition: delete stale index %q: %w", oldKey, err)
			}
			if _, err := e.store.Put(ctx, newKey, nil, nil, objectstore.PutOptions{ContentType: "application/octet-stream"}); err != nil {
				return fmt.Errorf("partition: put index %q: %w", newKey, err)
			}
		}
		return nil
	})
}

// Delete removes every partition index object for a deleted (or
// soft-deleted) record.
func (e *Engine) Delete(ctx context.Context, id string, record map[string]interface{}) error {
	return e.fanOut(ctx, id, func() error {
		for _, def := range e.defs {
			key, err := e.indexKey(def, id, record)
			if err != nil {
				return err
			}
			if err := e.store.Delete(ctx, key); err != nil {
				return fmt.Errorf("partition: delete index %q: %w", key, err)
			}
		}
		return nil
	})
}

// fanOut runs work synchronously (sync mode), or submits it to the pool
// serialized per id so per-record ordering is preserved (async mode).
func (e *Engine) fanOut(ctx context.Context, id string, work func() error) error {
	if len(e.defs) == 0 {
		return nil
	}
	if !e.async {
		return work()
	}
	e.pool.Submit(e.resource+":"+id, func() {
		if err := work(); err != nil {
			// Async fan-out errors are not surfaced to the caller of
			// insert/update/delete — it already returned once the primary
			// object was durable; the periodic reconciler is what repairs
			// drift from a failed or dropped write.
			e.logger.WithField("id", id).WithError(err).Warn("partition fan-out failed, awaiting reconciler")
		}
	})
	return nil
}

// Wait blocks until all submitted async work has completed. Used by tests
// and by graceful shutdown to drain the fan-out pool.
func (e *Engine) Wait() {
	e.pool.Wait()
}

// Def looks up a partition definition by name.
func (e *Engine) Def(name string) (Def, bool) {
	for _, def := range e.defs {
		if def.Name == name {
			return def, true
		}
	}
	return Def{}, false
}

// Query pages through a partition's index objects restricted to the
// leading contiguous subset of its declared fields present in filters —
// prefix scans only, no general predicates. It returns the
// matching record ids.
func (e *Engine) Query(ctx context.Context, partitionName string, filters map[string]interface{}, continuationToken string, limit int) ([]string, *objectstore.Page, error) {
	def, ok := e.Def(partitionName)
	if !ok {
		return nil, nil, fmt.Errorf("partition: unknown partition %q on resource %q", partitionName, e.resource)
	}

	var pairs [][2]string
	for _, f := range def.Fields {
		value, present := filters[f]
		if !present {
			break
		}
		attr := e.schema.Attributes[f]
		encoded, err := metadata.EncodeAttribute(attr, value)
		if err != nil {
			return nil, nil, fmt.Errorf("partition: encode filter %q: %w", f, err)
		}
		pairs = append(pairs, [2]string{f, encoded})
	}

	// Terminate the prefix at a segment boundary so a filter value that is
	// a prefix of another ("u1" vs "u10") cannot over-match.
	prefix := e.keys.PartitionPrefix(e.resource, partitionName, pairs) + "/"
	page, err := e.store.List(ctx, prefix, continuationToken, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("partition: query list: %w", err)
	}

	ids := make([]string, 0, len(page.Keys))
	for _, key := range page.Keys {
		if id, ok := idFromIndexKey(key); ok {
			ids = append(ids, id)
		}
	}
	return ids, page, nil
}

// idFromIndexKey extracts the "id=<...>" trailing path segment of a
// partition index object key.
func idFromIndexKey(key string) (string, bool) {
	segments := strings.Split(key, "/")
	last := segments[len(segments)-1]
	if !strings.HasPrefix(last, "id=") {
		return "", false
	}
	id, err := url.PathUnescape(strings.TrimPrefix(last, "id="))
	if err != nil {
		return "", false
	}
	return id, true
}
