package eventualconsistency

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kataras/go-events"
	"github.com/stretchr/testify/require"
)

// seedTransaction inserts a transaction record directly into the log, the
// way a long-running deployment would have accumulated it.
func seedTransaction(t *testing.T, h *harness, created time.Time, applied bool, appliedAt *time.Time, seq int) string {
	t.Helper()
	txRes, err := h.db.Resource(txResourceName("wallets", "balance"))
	require.NoError(t, err)

	tx := transaction{
		ID:         fmt.Sprintf("%020d_seed-%04d", created.UnixNano(), seq),
		OriginalID: "w1",
		Field:      "balance",
		Value:      1,
		Operation:  OpAdd,
		Timestamp:  created,
		Cohort:     computeCohorts(created, time.UTC),
		Applied:    applied,
		AppliedAt:  appliedAt,
	}
	_, err = txRes.Insert(context.Background(), tx.toRecord())
	require.NoError(t, err)
	return tx.ID
}

func TestGCDeletesOnlyExpiredAppliedTransactions(t *testing.T) {
	cfg := Config{
		Resources:         map[string][]string{"wallets": {"balance"}},
		Consolidation:     ConsolidationConfig{Mode: ConsolidationAsync},
		GarbageCollection: GarbageCollectionConfig{Enabled: true, RetentionDays: 30},
	}
	h := newHarness(t, cfg, walletConfig())
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.Add(-60 * 24 * time.Hour)
	recent := now.Add(-10 * 24 * time.Hour)

	expiredID := seedTransaction(t, h, old, true, &old, 1)
	retainedID := seedTransaction(t, h, recent, true, &recent, 2)
	// Unapplied transactions survive GC regardless of age.
	unappliedID := seedTransaction(t, h, old, false, nil, 3)

	counts, err := h.plugin.GCOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts["wallets.balance"])

	ids := make(map[string]bool)
	for _, tx := range listAllTransactions(t, h, "wallets", "balance") {
		ids[tx.ID] = true
	}
	require.False(t, ids[expiredID], "applied transaction past retention must be deleted")
	require.True(t, ids[retainedID], "applied transaction within retention must be kept")
	require.True(t, ids[unappliedID], "unapplied transaction must never be deleted")
}

func TestGCEmitsCompletedEvent(t *testing.T) {
	cfg := Config{
		Resources:         map[string][]string{"wallets": {"balance"}},
		Consolidation:     ConsolidationConfig{Mode: ConsolidationAsync},
		GarbageCollection: GarbageCollectionConfig{Enabled: true, RetentionDays: 30},
	}
	h := newHarness(t, cfg, walletConfig())
	ctx := context.Background()

	old := time.Now().UTC().Add(-90 * 24 * time.Hour)
	seedTransaction(t, h, old, true, &old, 1)
	seedTransaction(t, h, old, true, &old, 2)

	var mu sync.Mutex
	var deletedCounts []int
	h.db.Events().(events.EventEmmiter).On(EventGCCompleted, func(args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		if len(args) > 0 {
			if m, ok := args[0].(map[string]interface{}); ok {
				if n, ok := m["deletedCount"].(int); ok {
					deletedCounts = append(deletedCounts, n)
				}
			}
		}
	})

	counts, err := h.plugin.GCOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, counts["wallets.balance"])
	require.Empty(t, listAllTransactions(t, h, "wallets", "balance"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{2}, deletedCounts)
}
