package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/s3db-go/s3db/metadata"
	"github.com/s3db-go/s3db/objectstore"
)

func wrapGetErr(err error) error {
	if errors.Is(err, objectstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// getRaw reads and unpacks a record without applying the paranoid
// soft-delete filter, for internal use by Update/Delete which must see a
// tombstoned record to operate on it.
func (r *Resource) getRaw(ctx context.Context, id string) (map[string]interface{}, string, error) {
	obj, err := r.store.Get(ctx, r.PrimaryKey(id))
	if err != nil {
		return nil, "", wrapGetErr(err)
	}
	record, err := metadata.Unpack(r.Schema, obj.Metadata, obj.Body)
	if err != nil {
		return nil, "", fmt.Errorf("resource %q: unpack %q: %w", r.Name, id, err)
	}
	record["id"] = id
	return record, obj.ETag, nil
}

// Get reads one record by id. Under paranoid, a soft-deleted record reads
// as ErrNotFound.
func (r *Resource) Get(ctx context.Context, id string) (map[string]interface{}, error) {
	record, _, err := r.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Paranoid && record["deletedAt"] != nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// Exists reports whether id names a live (non-tombstoned) record.
func (r *Resource) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Insert validates, packs, and writes a new record's primary object, then
// fans out its partition indices and fires afterInsert hooks.
func (r *Resource) Insert(ctx context.Context, record map[string]interface{}) (map[string]interface{}, error) {
	input := cloneRecord(record)
	id, _ := input["id"].(string)
	if id == "" {
		id = newRecordID()
	}
	delete(input, "id")

	normalized, verr := r.Schema.Validate(input, false)
	if verr != nil {
		return nil, verr
	}

	if r.Timestamps {
		now := r.now().UTC().Format(time.RFC3339Nano)
		normalized["createdAt"] = now
		normalized["updatedAt"] = now
	}

	exists, err := r.store.Exists(ctx, r.PrimaryKey(id))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	if err := r.hooks.runBefore(ctx, BeforeInsert, &HookEvent{Resource: r.Name, ID: id, Record: normalized}); err != nil {
		return nil, err
	}

	plan, err := metadata.Pack(r.Schema, r.Policy, r.SchemaVersion, id, normalized)
	if err != nil {
		return nil, err
	}

	if _, err := r.store.Put(ctx, r.PrimaryKey(id), plan.Metadata, plan.Body, objectstore.PutOptions{ContentType: plan.ContentType}); err != nil {
		return nil, err
	}

	if r.partitions != nil {
		if err := r.partitions.Put(ctx, id, normalized); err != nil {
			return nil, err
		}
	}

	out := cloneRecord(normalized)
	out["id"] = id

	for _, herr := range r.hooks.runAfter(ctx, AfterInsert, &HookEvent{Resource: r.Name, ID: id, Record: out}) {
		r.logger.WithField("id", id).WithError(herr).Warn("afterInsert hook failed")
	}
	r.emitter.Emit(EventAfterInsert, out)

	return out, nil
}

// Update reads the current record, merges patch, re-validates the full
// record, packs, and conditionally overwrites the primary object
// (If-Match when the backend supports it), rewriting any partition whose
// key changed.
func (r *Resource) Update(ctx context.Context, id string, patch map[string]interface{}) (map[string]interface{}, error) {
	prior, etag, err := r.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.hooks.runBefore(ctx, BeforeUpdate, &HookEvent{Resource: r.Name, ID: id, Record: cloneRecord(patch), Prior: prior}); err != nil {
		return nil, err
	}

	merged := cloneRecord(prior)
	delete(merged, "id")
	for k, v := range patch {
		merged[k] = v
	}

	normalized, verr := r.Schema.Validate(merged, true)
	if verr != nil {
		return nil, verr
	}

	if r.Timestamps {
		normalized["updatedAt"] = r.now().UTC().Format(time.RFC3339Nano)
		if createdAt, ok := prior["createdAt"]; ok {
			normalized["createdAt"] = createdAt
		}
	}

	plan, err := metadata.Pack(r.Schema, r.Policy, r.SchemaVersion, id, normalized)
	if err != nil {
		return nil, err
	}

	putOpts := objectstore.PutOptions{ContentType: plan.ContentType}
	if etag != "" {
		putOpts.IfMatch = etag
	}
	if _, err := r.store.Put(ctx, r.PrimaryKey(id), plan.Metadata, plan.Body, putOpts); err != nil {
		if errors.Is(err, objectstore.ErrPreconditionFailed) {
			return nil, objectstore.ErrTransient
		}
		return nil, err
	}

	priorAttrs := cloneRecord(prior)
	delete(priorAttrs, "id")
	if r.partitions != nil {
		if err := r.partitions.Update(ctx, id, priorAttrs, normalized); err != nil {
			return nil, err
		}
	}

	out := cloneRecord(normalized)
	out["id"] = id

	for _, herr := range r.hooks.runAfter(ctx, AfterUpdate, &HookEvent{Resource: r.Name, ID: id, Record: out, Prior: prior}) {
		r.logger.WithField("id", id).WithError(herr).Warn("afterUpdate hook failed")
	}
	r.emitter.Emit(EventAfterUpdate, out)

	return out, nil
}

// Upsert inserts record if its id is absent or new, otherwise updates the
// existing record with record's fields.
func (r *Resource) Upsert(ctx context.Context, record map[string]interface{}) (map[string]interface{}, error) {
	id, _ := record["id"].(string)
	if id == "" {
		return r.Insert(ctx, record)
	}

	_, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return r.Insert(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	patch := cloneRecord(record)
	delete(patch, "id")
	return r.Update(ctx, id, patch)
}

// Delete removes a record. Under paranoid, it marks the tombstone
// attribute and removes partition indices but keeps the primary object;
// otherwise it hard-deletes both.
func (r *Resource) Delete(ctx context.Context, id string) error {
	prior, etag, err := r.getRaw(ctx, id)
	if err != nil {
		return err
	}

	if err := r.hooks.runBefore(ctx, BeforeDelete, &HookEvent{Resource: r.Name, ID: id, Record: prior}); err != nil {
		return err
	}

	priorAttrs := cloneRecord(prior)
	delete(priorAttrs, "id")

	if r.Paranoid {
		tombstoned := cloneRecord(priorAttrs)
		tombstoned["deletedAt"] = r.now().UTC().Format(time.RFC3339Nano)

		plan, err := metadata.Pack(r.Schema, r.Policy, r.SchemaVersion, id, tombstoned)
		if err != nil {
			return err
		}
		putOpts := objectstore.PutOptions{ContentType: plan.ContentType}
		if etag != "" {
			putOpts.IfMatch = etag
		}
		if _, err := r.store.Put(ctx, r.PrimaryKey(id), plan.Metadata, plan.Body, putOpts); err != nil {
			if errors.Is(err, objectstore.ErrPreconditionFailed) {
				return objectstore.ErrTransient
			}
			return err
		}
	} else {
		if err := r.store.Delete(ctx, r.PrimaryKey(id)); err != nil {
			return err
		}
	}

	if r.partitions != nil {
		if err := r.partitions.Delete(ctx, id, priorAttrs); err != nil {
			return err
		}
	}

	for _, herr := range r.hooks.runAfter(ctx, AfterDelete, &HookEvent{Resource: r.Name, ID: id, Record: prior}) {
		r.logger.WithField("id", id).WithError(herr).Warn("afterDelete hook failed")
	}
	r.emitter.Emit(EventAfterDelete, prior)
	return nil
}

// ListOptions configures List.
type ListOptions struct {
	Limit  int
	Cursor string
	// Partition, when set, restricts the scan to that partition's index
	// objects instead of the resource's primary objects.
	Partition string
}

// ListPage is one page of List results.
type ListPage struct {
	Records           []map[string]interface{}
	ContinuationToken string
	IsTruncated       bool
}

// List pages through the resource's primary objects (or, if opts.Partition
// is set, a partition's full range) and reassembles each into a record.
func (r *Resource) List(ctx context.Context, opts ListOptions) (*ListPage, error) {
	if opts.Partition != "" {
		return r.listByPartition(ctx, opts)
	}

	prefix := r.keys.ResourcePrefix(r.Name)
	page, err := r.store.List(ctx, prefix, opts.Cursor, opts.Limit)
	if err != nil {
		return nil, err
	}

	out := &ListPage{ContinuationToken: page.ContinuationToken, IsTruncated: page.IsTruncated}
	for _, key := range page.Keys {
		id, ok := primaryIDFromKey(prefix, key)
		if !ok {
			continue
		}
		record, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, record)
	}
	return out, nil
}

func (r *Resource) listByPartition(ctx context.Context, opts ListOptions) (*ListPage, error) {
	if r.partitions == nil {
		return nil, fmt.Errorf("resource %q: no partitions declared", r.Name)
	}
	ids, page, err := r.partitions.Query(ctx, opts.Partition, nil, opts.Cursor, opts.Limit)
	if err != nil {
		return nil, err
	}
	out := &ListPage{ContinuationToken: page.ContinuationToken, IsTruncated: page.IsTruncated}
	for _, id := range ids {
		record, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, record)
	}
	return out, nil
}

// Query restricts to a declared partition's prefix scan — no general
// predicates — returning the matching records.
func (r *Resource) Query(ctx context.Context, partitionName string, fieldFilters map[string]interface{}) ([]map[string]interface{}, error) {
	if r.partitions == nil {
		return nil, fmt.Errorf("resource %q: no partitions declared", r.Name)
	}

	var records []map[string]interface{}
	cursor := ""
	for {
		ids, page, err := r.partitions.Query(ctx, partitionName, fieldFilters, cursor, 0)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			record, err := r.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
		if !page.IsTruncated {
			break
		}
		cursor = page.ContinuationToken
	}
	return records, nil
}

// Count returns the number of live records in the resource, or, if
// partitionName is non-empty, in that partition.
func (r *Resource) Count(ctx context.Context, partitionName string) (int64, error) {
	var prefix string
	if partitionName != "" {
		if r.partitions == nil {
			return 0, fmt.Errorf("resource %q: no partitions declared", r.Name)
		}
		if _, ok := r.partitions.Def(partitionName); !ok {
			return 0, fmt.Errorf("resource %q: unknown partition %q", r.Name, partitionName)
		}
		prefix = r.keys.PartitionPrefix(r.Name, partitionName, nil) + "/"
	} else {
		prefix = r.keys.ResourcePrefix(r.Name)
	}

	var count int64
	cursor := ""
	for {
		page, err := r.store.List(ctx, prefix, cursor, 1000)
		if err != nil {
			return 0, err
		}
		if partitionName != "" {
			count += int64(len(page.Keys))
		} else {
			for _, key := range page.Keys {
				id, ok := primaryIDFromKey(prefix, key)
				if !ok {
					continue
				}
				if r.Paranoid {
					live, err := r.Exists(ctx, id)
					if err != nil {
						return 0, err
					}
					if !live {
						continue
					}
				}
				count++
			}
		}
		if !page.IsTruncated {
			break
		}
		cursor = page.ContinuationToken
	}
	return count, nil
}

// primaryIDFromKey reports whether key is a primary object under prefix
// (its next path segment is "id=<...>" rather than "partition=..."),
// returning the decoded id.
func primaryIDFromKey(prefix, key string) (string, bool) {
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
	id, err := url.PathUnescape(strings.TrimPrefix(segment, "id="))
	if err != nil {
		return "", false
	}
	return id, true
}
