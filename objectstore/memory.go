package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MemoryStore is a map-backed in-memory Client for unit tests, with
// Delete and ETag-based conditional writes so the same code paths run in
// tests as against a real store.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	seq     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*Object)}
}

func (m *MemoryStore) nextETag() string {
	m.seq++
	return strconv.FormatInt(m.seq, 10)
}

func (m *MemoryStore) Put(ctx context.Context, key string, metadata map[string]string, body []byte, opts PutOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.IfMatch != "" {
		existing, ok := m.objects[key]
		if !ok || existing.ETag != opts.IfMatch {
			return "", ErrPreconditionFailed
		}
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	bodyCopy := make([]byte, len(body))
	copy(bodyCopy, body)

	etag := m.nextETag()
	m.objects[key] = &Object{
		Metadata:    meta,
		Body:        bodyCopy,
		ContentType: opts.ContentType,
		ETag:        etag,
	}
	return etag, nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	clone := *obj
	clone.Body = append([]byte(nil), obj.Body...)
	return &clone, nil
}

func (m *MemoryStore) Head(ctx context.Context, key string) (*Object, error) {
	obj, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	obj.Body = nil
	return obj, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) List(ctx context.Context, prefix, continuationToken string, limit int) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

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
