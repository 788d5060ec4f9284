package objectstore

import "context"

// Object is a single stored object: its metadata (the user-metadata
// key/value region) and its body bytes.
type Object struct {
	Metadata    map[string]string
	Body        []byte
	ContentType string
	ETag        string
}

// PutOptions controls an individual Put call.
type PutOptions struct {
	ContentType string
	// IfMatch, when non-empty, makes the write conditional on the stored
	// ETag matching. Backends that cannot support this natively emulate it
	// with an in-process compare-and-swap (see memory.go, file.go).
	IfMatch string
}

// Page is one page of a List call.
type Page struct {
	Keys              []string
	ContinuationToken string
	IsTruncated       bool
}

// Client is the object-store primitive surface every resource is built on.
// Implementations must be safe for concurrent use.
type Client interface {
	// Put writes an object's metadata and body. It is idempotent: writing
	// the same key twice with the same content succeeds both times.
	Put(ctx context.Context, key string, metadata map[string]string, body []byte, opts PutOptions) (etag string, err error)

	// Get retrieves an object's metadata and body. Returns ErrNotFound if
	// the key does not exist.
	Get(ctx context.Context, key string) (*Object, error)

	// Head retrieves only an object's metadata, without its body. Returns
	// ErrNotFound if the key does not exist.
	Head(ctx context.Context, key string) (*Object, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a key is present, without surfacing ErrNotFound.
	Exists(ctx context.Context, key string) (bool, error)

	// List pages through keys under prefix. continuationToken is the empty
	// string for the first page and Page.ContinuationToken thereafter.
	List(ctx context.Context, prefix, continuationToken string, limit int) (*Page, error)
}
