// Package metadata packs validated records into an object's user-metadata
// and body according to a per-resource Behavior, and unpacks them back.
package metadata

import "errors"

// ErrMetadataOverflow is returned when a record does not fit within the
// metadata budget and the active behavior forbids overflow into the body.
var ErrMetadataOverflow = errors.New("metadata: record exceeds metadata budget")
