package objectstore

import (
	"net/url"
	"strings"
)

// KeyBuilder centralizes the object key layout: every key lives under
// "<prefix>/resource=<name>/...".
type KeyBuilder struct {
	Prefix string
}

func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{Prefix: strings.Trim(prefix, "/")}
}

func (k *KeyBuilder) join(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if k.Prefix != "" {
		all = append(all, k.Prefix)
	}
	all = append(all, parts...)
	return strings.Join(all, "/")
}

// Primary returns the key of a record's primary object.
func (k *KeyBuilder) Primary(resource, id string) string {
	return k.join("resource="+resource, "id="+url.PathEscape(id))
}

// ResourcePrefix returns the prefix under which every object of a resource
// (primary and partition) lives, for List scans.
func (k *KeyBuilder) ResourcePrefix(resource string) string {
	return k.join("resource=" + resource)
}

// Partition returns the key of a partition index object. fields must be in
// the partition's declared order, already encoded.
func (k *KeyBuilder) Partition(resource, partition string, fields [][2]string, id string) string {
	parts := []string{"resource=" + resource, "partition=" + partition}
	for _, f := range fields {
		parts = append(parts, f[0]+"="+f[1])
	}
	parts = append(parts, "id="+url.PathEscape(id))
	return k.join(parts...)
}

// PartitionPrefix returns the scan prefix for a partition, optionally
// narrowed by a leading subset of encoded field values (for Query).
func (k *KeyBuilder) PartitionPrefix(resource, partition string, fields [][2]string) string {
	parts := []string{"resource=" + resource, "partition=" + partition}
	for _, f := range fields {
		parts = append(parts, f[0]+"="+f[1])
	}
	return k.join(parts...)
}

// Lock returns the key of a distributed lock's metadata object, used only
// for observability; the lock package itself is Redis-backed, not
// object-store-backed.
func (k *KeyBuilder) Lock(resource, id, field string) string {
	return k.join("locks", resource+":"+id+":"+field)
}
