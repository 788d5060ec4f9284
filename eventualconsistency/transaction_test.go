package eventualconsistency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFoldOperations(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txAt := func(offset int, op Operation, v float64) transaction {
		return transaction{
			ID:        newTransactionID(base.Add(time.Duration(offset) * time.Second)),
			Operation: op,
			Value:     v,
			Timestamp: base.Add(time.Duration(offset) * time.Second),
		}
	}

	txs := []transaction{
		txAt(0, OpAdd, 10),
		txAt(1, OpSub, 3),
		txAt(2, OpSet, 100),
		txAt(3, OpAdd, 1),
	}
	require.Equal(t, float64(101), fold(5, txs), "set must reset the accumulator")
	require.Equal(t, float64(12), fold(5, txs[:2]))
}

func TestSortTransactionsTimestampThenID(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := []transaction{
		{ID: "b", Timestamp: base},
		{ID: "a", Timestamp: base},
		{ID: "c", Timestamp: base.Add(-time.Second)},
	}
	sortTransactions(txs)
	require.Equal(t, "c", txs[0].ID, "earlier timestamp sorts first")
	require.Equal(t, "a", txs[1].ID, "timestamp tie broken by id")
	require.Equal(t, "b", txs[2].ID)
}

func TestNewTransactionIDSortsByCreationTime(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Nanosecond)
	require.Less(t, newTransactionID(t1), newTransactionID(t2))
}

func TestTransactionRecordRoundTrip(t *testing.T) {
	at := time.Date(2026, 5, 2, 16, 4, 5, 123456789, time.UTC)
	appliedAt := at.Add(time.Minute)
	tx := transaction{
		ID:         newTransactionID(at),
		OriginalID: "w1",
		Field:      "balance",
		Value:      42.5,
		Operation:  OpSub,
		Timestamp:  at,
		Cohort:     computeCohorts(at, time.UTC),
		Applied:    true,
		AppliedAt:  &appliedAt,
	}

	back, err := transactionFromRecord(tx.toRecord())
	require.NoError(t, err)
	require.Equal(t, tx.ID, back.ID)
	require.Equal(t, tx.OriginalID, back.OriginalID)
	require.Equal(t, tx.Field, back.Field)
	require.Equal(t, tx.Value, back.Value)
	require.Equal(t, tx.Operation, back.Operation)
	require.True(t, tx.Timestamp.Equal(back.Timestamp))
	require.Equal(t, tx.Cohort, back.Cohort)
	require.True(t, back.Applied)
	require.NotNil(t, back.AppliedAt)
	require.True(t, appliedAt.Equal(*back.AppliedAt))
}

func TestSanitizeField(t *testing.T) {
	require.Equal(t, "clicks", sanitizeField("clicks"))
	require.Equal(t, "utmResults_medium", sanitizeField("utmResults.medium"))
	require.Equal(t, "plg_pages_tx_utmResults_medium", txResourceName("pages", "utmResults.medium"))
}

func TestSplitFieldAndPatch(t *testing.T) {
	top, nested := splitField("utmResults.medium")
	require.Equal(t, "utmResults", top)
	require.Equal(t, "medium", nested)

	top, nested = splitField("balance")
	require.Equal(t, "balance", top)
	require.Equal(t, "", nested)

	rec := map[string]interface{}{
		"utmResults": map[string]interface{}{"source": float64(3)},
	}
	patch := buildFieldPatch(rec, "utmResults.medium", 7)
	obj, ok := patch["utmResults"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(7), obj["medium"])
	require.Equal(t, float64(3), obj["source"], "sibling keys preserved")

	// The patch must not alias the record it was derived from.
	require.Equal(t, map[string]interface{}{"source": float64(3)}, rec["utmResults"])

	require.Equal(t, float64(7), fieldValue(map[string]interface{}{"utmResults": obj}, "utmResults.medium"))
	require.Equal(t, float64(0), fieldValue(map[string]interface{}{}, "utmResults.medium"))
}
