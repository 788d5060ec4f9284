// Package objectstore provides a thin, retryable abstraction over the
// object store that backs every record in the system. It knows nothing
// about schemas, attributes, or behaviors — only bytes, metadata, and keys.
package objectstore

import "errors"

// Error axes surfaced by every backend. Callers distinguish "not found"
// from "transient" (retry) from "permanent" (give up) without inspecting
// backend-specific error types.
var (
	ErrNotFound  = errors.New("objectstore: object not found")
	ErrTransient = errors.New("objectstore: transient failure")
	ErrPermanent = errors.New("objectstore: permanent failure")

	// ErrPreconditionFailed is returned by Put when IfMatch is set and the
	// stored ETag does not match; callers should re-read and retry.
	ErrPreconditionFailed = errors.New("objectstore: precondition failed")
)
