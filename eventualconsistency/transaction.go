package eventualconsistency

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/s3db-go/s3db/partition"
	"github.com/s3db-go/s3db/resource"
	"github.com/s3db-go/s3db/schema"
)

// Operation is the fold operator a transaction applies to the accumulator
// during consolidation.
type Operation string

const (
	OpAdd Operation = "add"
	OpSub Operation = "sub"
	OpSet Operation = "set"
)

// transaction is one pending or applied mutation of a single
// (resource, id, field).
type transaction struct {
	ID         string
	OriginalID string
	Field      string
	Value      float64
	Operation  Operation
	Timestamp  time.Time
	Cohort     cohortKeys
	Applied    bool
	AppliedAt  *time.Time
}

// txResourceName is the plg_<target>_tx_<field> naming convention.
func txResourceName(resourceName, field string) string {
	return fmt.Sprintf("plg_%s_tx_%s", resourceName, sanitizeField(field))
}

func analyticsResourceName(resourceName, field string) string {
	return fmt.Sprintf("plg_%s_an_%s", resourceName, sanitizeField(field))
}

func checkpointResourceName(resourceName, field string) string {
	return fmt.Sprintf("plg_%s_ck_%s", resourceName, sanitizeField(field))
}

// sanitizeField replaces the nested-path separator so resource names stay
// free of dots; a nested leaf like "utmResults.medium" gets its own
// independent transaction stream.
func sanitizeField(field string) string {
	out := make([]byte, len(field))
	for i := 0; i < len(field); i++ {
		if field[i] == '.' {
			out[i] = '_'
		} else {
			out[i] = field[i]
		}
	}
	return string(out)
}

// txResourceConfig declares the append-only transaction log resource for
// one (resource, field) pair: its schema and the byOriginalIdAndApplied
// partition that drives consolidation lookup, plus per-period cohort
// partitions for ad hoc cohort scans.
func txResourceConfig(resourceName, field string) resource.Config {
	name := txResourceName(resourceName, field)
	return resource.Config{
		Name: name,
		Attributes: []schema.AttributeDef{
			{Name: "originalId", Type: "string", Required: true},
			{Name: "field", Type: "string", Required: true},
			{Name: "value", Type: "number", Required: true},
			{Name: "operation", Type: "string", Required: true, Enum: []string{string(OpAdd), string(OpSub), string(OpSet)}},
			{Name: "timestamp", Type: "date", Required: true},
			{Name: "cohortHour", Type: "string", Required: true},
			{Name: "cohortDay", Type: "string", Required: true},
			{Name: "cohortWeek", Type: "string", Required: true},
			{Name: "cohortMonth", Type: "string", Required: true},
			{Name: "applied", Type: "boolean", Required: true},
			{Name: "appliedAt", Type: "date"},
		},
		Behavior: "user-metadata",
		Partitions: []partition.Def{
			{Name: "byOriginalIdAndApplied", Fields: []string{"originalId", "applied"}},
			{Name: "byCohortHour", Fields: []string{"cohortHour"}},
			{Name: "byCohortDay", Fields: []string{"cohortDay"}},
			{Name: "byCohortWeek", Fields: []string{"cohortWeek"}},
			{Name: "byCohortMonth", Fields: []string{"cohortMonth"}},
		},
		AsyncPartitions: false,
	}
}

// newTransactionID generates a monotonically-sortable transaction id: a
// nanosecond timestamp prefix (the consolidation tie-break sorts on it)
// followed by a uuid suffix to keep same-nanosecond collisions impossible
// in practice.
func newTransactionID(now time.Time) string {
	return fmt.Sprintf("%020d_%s", now.UnixNano(), uuid.NewString())
}

// toRecord renders a transaction to the map shape Resource.Insert expects.
func (t transaction) toRecord() map[string]interface{} {
	rec := map[string]interface{}{
		"id":          t.ID,
		"originalId":  t.OriginalID,
		"field":       t.Field,
		"value":       t.Value,
		"operation":   string(t.Operation),
		"timestamp":   t.Timestamp.UTC().Format(time.RFC3339Nano),
		"cohortHour":  t.Cohort.Hour,
		"cohortDay":   t.Cohort.Day,
		"cohortWeek":  t.Cohort.Week,
		"cohortMonth": t.Cohort.Month,
		"applied":     t.Applied,
	}
	if t.AppliedAt != nil {
		rec["appliedAt"] = t.AppliedAt.UTC().Format(time.RFC3339Nano)
	}
	return rec
}

// transactionFromRecord reverses toRecord, tolerating the id being stored
// under the "id" key as Resource.Get/List does.
func transactionFromRecord(rec map[string]interface{}) (transaction, error) {
	id, _ := rec["id"].(string)
	originalID, _ := rec["originalId"].(string)
	field, _ := rec["field"].(string)
	value, _ := rec["value"].(float64)
	op, _ := rec["operation"].(string)
	applied, _ := rec["applied"].(bool)

	ts, err := parseTimestamp(rec["timestamp"])
	if err != nil {
		return transaction{}, fmt.Errorf("eventualconsistency: transaction %q: %w", id, err)
	}

	tx := transaction{
		ID:         id,
		OriginalID: originalID,
		Field:      field,
		Value:      value,
		Operation:  Operation(op),
		Timestamp:  ts,
		Cohort: cohortKeys{
			Hour:  stringField(rec, "cohortHour"),
			Day:   stringField(rec, "cohortDay"),
			Week:  stringField(rec, "cohortWeek"),
			Month: stringField(rec, "cohortMonth"),
		},
		Applied: applied,
	}
	if raw, ok := rec["appliedAt"]; ok && raw != nil {
		at, err := parseTimestamp(raw)
		if err == nil {
			tx.AppliedAt = &at
		}
	}
	return tx, nil
}

func stringField(rec map[string]interface{}, key string) string {
	s, _ := rec[key].(string)
	return s
}

func parseTimestamp(raw interface{}) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected a date string for %v", raw)
	}
	return time.Parse(time.RFC3339Nano, s)
}

// sortTransactions orders transactions in fold order: by timestamp, ties
// broken by the monotonic transaction id.
func sortTransactions(txs []transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.Before(txs[j].Timestamp)
		}
		return txs[i].ID < txs[j].ID
	})
}

// fold replays txs in order onto initial: set resets the accumulator,
// add adds, sub subtracts.
func fold(initial float64, txs []transaction) float64 {
	acc := initial
	for _, tx := range txs {
		switch tx.Operation {
		case OpSet:
			acc = tx.Value
		case OpAdd:
			acc += tx.Value
		case OpSub:
			acc -= tx.Value
		}
	}
	return acc
}
