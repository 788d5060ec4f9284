package objectstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/s3db-go/s3db/db/bolt"
)

// fileBucket is the single bbolt bucket every object lives in; the key
// layout itself (resource=.../id=...) provides the namespacing.
const fileBucket = "objects"

// fileRecord is the JSON envelope persisted per key, mirroring Object plus
// an ETag assigned on write for conditional-update support.
type fileRecord struct {
	Metadata    map[string]string `json:"metadata"`
	Body        []byte            `json:"body"`
	ContentType string            `json:"contentType"`
	ETag        string            `json:"etag"`
}

// FileStore is a bbolt-backed Client for local development and tests that
// want real persistence without a network dependency, built on db/bolt's
// JSON put/get/prefix-scan helpers.
type FileStore struct {
	db  *bolt.DB
	seq int64
	mu  sync.Mutex
}

// NewFileStore opens (creating if absent) a bbolt database at path.
func NewFileStore(path string) (*FileStore, error) {
	db, err := bolt.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open file store: %w", err)
	}
	if err := db.CreateBucket(fileBucket); err != nil {
		return nil, fmt.Errorf("objectstore: init file store: %w", err)
	}
	return &FileStore{db: db}, nil
}

func (f *FileStore) Close() error {
	return f.db.Close()
}

func (f *FileStore) nextETag() string {
	return strconv.FormatInt(atomic.AddInt64(&f.seq, 1), 10)
}

func (f *FileStore) Put(ctx context.Context, key string, metadata map[string]string, body []byte, opts PutOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if opts.IfMatch != "" {
		var existing fileRecord
		err := f.db.GetJSON(fileBucket, key, &existing)
		if err != nil || existing.ETag != opts.IfMatch {
			return "", ErrPreconditionFailed
		}
	}

	rec := fileRecord{
		Metadata:    metadata,
		Body:        body,
		ContentType: opts.ContentType,
		ETag:        f.nextETag(),
	}
	if err := f.db.PutJSON(fileBucket, key, rec); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return rec.ETag, nil
}

func (f *FileStore) Get(ctx context.Context, key string) (*Object, error) {
	var rec fileRecord
	if err := f.db.GetJSON(fileBucket, key, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return &Object{
		Metadata:    rec.Metadata,
		Body:        rec.Body,
		ContentType: rec.ContentType,
		ETag:        rec.ETag,
	}, nil
}

func (f *FileStore) Head(ctx context.Context, key string) (*Object, error) {
	obj, err := f.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	obj.Body = nil
	return obj, nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	if err := f.db.Delete(fileBucket, key); err != nil {
		return nil // deleting a missing key is not an error
	}
	return nil
}

func (f *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	var rec fileRecord
	err := f.db.GetJSON(fileBucket, key, &rec)
	return err == nil, nil
}

func (f *FileStore) List(ctx context.Context, prefix, continuationToken string, limit int) (*Page, error) {
	// bbolt's cursor returns the range already sorted.
	keys, err := f.db.ListPrefix(fileBucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	start := 0
	if continuationToken != "" {
		for i, k := range keys {
			if k > continuationToken {
				start = i
				break
			}
			start = i + 1
		}
	}
	if limit <= 0 {
		limit = len(keys)
	}
	end := start + limit
	if end > len(keys) {
		end = len(keys)
	}

	page := &Page{Keys: keys[start:end]}
	if end < len(keys) {
		page.IsTruncated = true
		page.ContinuationToken = keys[end-1]
	}
	return page, nil
}
