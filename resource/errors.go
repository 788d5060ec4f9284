// Package resource implements the per-collection CRUD runtime: insert,
// update, delete, list, query, and their bulk counterparts, each validating
// against a compiled schema, packing through the metadata behaviors, and
// fanning out partition index writes.
package resource

import "errors"

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("resource: record not found")

	// ErrAlreadyExists is returned by insert when the id already exists.
	ErrAlreadyExists = errors.New("resource: record already exists")
)
