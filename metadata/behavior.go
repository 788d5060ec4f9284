package metadata

// Behavior names one of the five object-layout strategies the packer uses
// when a record's encoded size exceeds the metadata budget.
type Behavior string

const (
	// BehaviorUserMetadata forbids any overflow. Packing fails with
	// ErrMetadataOverflow rather than touching the body. Intended for
	// small, metadata-only resources where the body must stay empty.
	BehaviorUserMetadata Behavior = "user-metadata"

	// BehaviorEnforceLimits applies each attribute's configured maximum
	// length before attempting to fit; if the record still overflows
	// after enforcing limits, packing fails.
	BehaviorEnforceLimits Behavior = "enforce-limits"

	// BehaviorTruncateData truncates string attributes, longest first
	// (ties broken by attribute name), until the record fits, and
	// records which attributes were truncated.
	BehaviorTruncateData Behavior = "truncate-data"

	// BehaviorBodyOverflow is the default: attributes that don't fit are
	// moved into the body JSON's "_overflow" object, largest first,
	// until the remaining metadata fits.
	BehaviorBodyOverflow Behavior = "body-overflow"

	// BehaviorBodyOnly skips the metadata-fit attempt entirely. The full
	// encoded record is placed in the body; metadata carries only the
	// schema version and id.
	BehaviorBodyOnly Behavior = "body-only"
)

// DefaultMetadataBudget is the default per-object user-metadata ceiling in
// bytes, after accounting for reserved system keys.
const DefaultMetadataBudget = 2048

// Policy configures one resource's packing behavior.
type Policy struct {
	Behavior Behavior
	// Budget is the metadata byte ceiling for this resource. Zero means
	// DefaultMetadataBudget.
	Budget int
}

func (p Policy) budget() int {
	if p.Budget <= 0 {
		return DefaultMetadataBudget
	}
	return p.Budget
}

func (p Policy) behavior() Behavior {
	if p.Behavior == "" {
		return BehaviorBodyOverflow
	}
	return p.Behavior
}
