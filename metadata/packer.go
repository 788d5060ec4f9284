package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/s3db-go/s3db/schema"
)

const (
	reservedSchemaKey   = "_s"
	reservedBehaviorKey = "_b"
	reservedIDKey       = "_id"
	overflowFlagPrefix  = "_o:"
	truncatedFlagPrefix = "_t:"

	// perKeyOverhead accounts for the fixed envelope cost (separators,
	// type tagging) the object store's metadata header imposes per key,
	// independent of key/value length.
	perKeyOverhead = 2
)

// Plan is the output of Pack: the metadata map and body bytes ready to be
// written to the object store.
type Plan struct {
	Metadata    map[string]string
	Body        []byte
	ContentType string
}

type entry struct {
	name    string
	encoded string
}

func (e entry) size() int {
	return len(e.name) + len(e.encoded) + perKeyOverhead
}

// Pack turns a validated, schema-normalized record into a Plan, honoring
// policy's behavior when the encoded record exceeds the metadata budget.
func Pack(s *schema.Schema, policy Policy, schemaVersion int, id string, record map[string]interface{}) (*Plan, error) {
	behavior := policy.behavior()
	budget := policy.budget()

	if behavior == BehaviorBodyOnly {
		return packBodyOnly(s, schemaVersion, id, record)
	}

	entries, err := encodeEntries(s, record)
	if err != nil {
		return nil, err
	}

	reserved := reservedSize(schemaVersion, id, behavior)
	if reserved+totalSize(entries) <= budget {
		return finalize(entries, schemaVersion, id, behavior, nil), nil
	}

	switch behavior {
	case BehaviorUserMetadata:
		return nil, ErrMetadataOverflow

	case BehaviorEnforceLimits:
		entries, err = enforceLimits(s, record, entries)
		if err != nil {
			return nil, err
		}
		if reserved+totalSize(entries) > budget {
			return nil, ErrMetadataOverflow
		}
		return finalize(entries, schemaVersion, id, behavior, nil), nil

	case BehaviorTruncateData:
		entries, truncated, err := truncateToFit(s, record, entries, budget-reserved)
		if err != nil {
			return nil, err
		}
		return finalize(entries, schemaVersion, id, behavior, truncated), nil

	case BehaviorBodyOverflow:
		kept, overflowed := overflowToFit(entries, budget-reserved)
		body, contentType, err := buildOverflowBody(overflowed)
		if err != nil {
			return nil, err
		}
		plan := finalize(kept, schemaVersion, id, behavior, nil)
		for _, e := range overflowed {
			plan.Metadata[overflowFlagPrefix+e.name] = "1"
		}
		plan.Body = body
		plan.ContentType = contentType
		return plan, nil
	}

	return nil, fmt.Errorf("metadata: unknown behavior %q", behavior)
}

func encodeEntries(s *schema.Schema, record map[string]interface{}) ([]entry, error) {
	entries := make([]entry, 0, len(s.Order))
	for _, name := range s.Order {
		value, present := record[name]
		if !present {
			continue
		}
		attr := s.Attributes[name]
		encoded, err := encodeAttribute(attr, value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{name: name, encoded: encoded})
	}
	return entries, nil
}

func totalSize(entries []entry) int {
	total := 0
	for _, e := range entries {
		total += e.size()
	}
	return total
}

func reservedSize(schemaVersion int, id string, behavior Behavior) int {
	return len(reservedSchemaKey) + len(strconv.Itoa(schemaVersion)) + perKeyOverhead +
		len(reservedBehaviorKey) + len(string(behavior)) + perKeyOverhead +
		len(reservedIDKey) + len(id) + perKeyOverhead
}

func finalize(entries []entry, schemaVersion int, id string, behavior Behavior, truncated []string) *Plan {
	metadata := make(map[string]string, len(entries)+4)
	metadata[reservedSchemaKey] = strconv.Itoa(schemaVersion)
	metadata[reservedBehaviorKey] = string(behavior)
	metadata[reservedIDKey] = id
	for _, e := range entries {
		metadata[e.name] = e.encoded
	}
	for _, name := range truncated {
		metadata[truncatedFlagPrefix+name] = "1"
	}
	return &Plan{Metadata: metadata, Body: []byte("{}"), ContentType: "application/json"}
}

func packBodyOnly(s *schema.Schema, schemaVersion int, id string, record map[string]interface{}) (*Plan, error) {
	entries, err := encodeEntries(s, record)
	if err != nil {
		return nil, err
	}
	encoded := make(map[string]string, len(entries))
	for _, e := range entries {
		encoded[e.name] = e.encoded
	}
	body, err := json.Marshal(encoded)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Metadata: map[string]string{
			reservedSchemaKey:   strconv.Itoa(schemaVersion),
			reservedBehaviorKey: string(BehaviorBodyOnly),
			reservedIDKey:       id,
		},
		Body:        body,
		ContentType: "application/json",
	}, nil
}

// enforceLimits truncates each string-kind attribute's raw value to its
// schema-declared MaxLength (if any) and re-encodes it.
func enforceLimits(s *schema.Schema, record map[string]interface{}, entries []entry) ([]entry, error) {
	out := make([]entry, len(entries))
	copy(out, entries)

	for i, e := range out {
		attr := s.Attributes[e.name]
		if attr.MaxLength == nil {
			continue
		}
		raw, ok := record[e.name].(string)
		if !ok {
			continue
		}
		if len(raw) <= *attr.MaxLength {
			continue
		}
		clipped := raw[:*attr.MaxLength]
		encoded, err := encodeAttribute(attr, clipped)
		if err != nil {
			return nil, err
		}
		out[i] = entry{name: e.name, encoded: encoded}
	}
	return out, nil
}

// truncateToFit shrinks string-kind entries, largest-encoded-first (ties
// broken by name), until the remaining entries, together with one
// truncation flag per shrunk attribute, fit within limit bytes.
func truncateToFit(s *schema.Schema, record map[string]interface{}, entries []entry, limit int) ([]entry, []string, error) {
	out := make([]entry, len(entries))
	copy(out, entries)

	order := make([]int, 0, len(out))
	for i, e := range out {
		if s.Attributes[e.name].Type.Kind == schema.KindString || s.Attributes[e.name].Type.Kind == schema.KindSecret {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		ea, eb := out[order[a]], out[order[b]]
		if ea.size() != eb.size() {
			return ea.size() > eb.size()
		}
		return ea.name < eb.name
	})

	var truncated []string
	flagCost := 0
	for _, idx := range order {
		if totalSize(out)+flagCost <= limit {
			break
		}
		e := out[idx]
		raw, ok := record[e.name].(string)
		if !ok || len(raw) == 0 {
			continue
		}
		flagCost += len(truncatedFlagPrefix) + len(e.name) + len("1") + perKeyOverhead
		for len(raw) > 0 && totalSize(out)+flagCost > limit {
			cut := len(raw) / 2
			if cut == len(raw) {
				cut = 0
			}
			raw = raw[:cut]
			attr := s.Attributes[e.name]
			encoded, err := encodeAttribute(attr, raw)
			if err != nil {
				return nil, nil, err
			}
			out[idx] = entry{name: e.name, encoded: encoded}
		}
		truncated = append(truncated, e.name)
	}

	if totalSize(out)+flagCost > limit {
		return nil, nil, ErrMetadataOverflow
	}
	return out, truncated, nil
}

// overflowToFit moves entries, largest-first (ties broken by name), out of
// the metadata set until the remainder, together with one overflow flag per
// moved entry, fits within limit bytes.
func overflowToFit(entries []entry, limit int) (kept []entry, overflowed []entry) {
	sorted := make([]entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].size() != sorted[b].size() {
			return sorted[a].size() > sorted[b].size()
		}
		return sorted[a].name < sorted[b].name
	})

	keptSet := make(map[string]bool, len(entries))
	for _, e := range entries {
		keptSet[e.name] = true
	}

	total := totalSize(entries)
	for _, e := range sorted {
		if total <= limit {
			break
		}
		overflowed = append(overflowed, e)
		keptSet[e.name] = false
		total -= e.size()
		total += len(overflowFlagPrefix) + len(e.name) + len("1") + perKeyOverhead
	}

	for _, e := range entries {
		if keptSet[e.name] {
			kept = append(kept, e)
		}
	}
	return kept, overflowed
}

type overflowBody struct {
	Overflow map[string]string `json:"_overflow"`
}

func buildOverflowBody(overflowed []entry) ([]byte, string, error) {
	if len(overflowed) == 0 {
		return []byte("{}"), "application/json", nil
	}
	m := make(map[string]string, len(overflowed))
	for _, e := range overflowed {
		m[e.name] = e.encoded
	}
	body, err := json.Marshal(overflowBody{Overflow: m})
	if err != nil {
		return nil, "", err
	}
	return body, "application/json", nil
}
