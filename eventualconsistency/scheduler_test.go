package eventualconsistency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerConsolidatesPendingRecords(t *testing.T) {
	cfg := Config{
		Resources: map[string][]string{"wallets": {"balance"}},
		Consolidation: ConsolidationConfig{
			Mode:            ConsolidationAsync,
			Auto:            true,
			IntervalSeconds: 1,
		},
	}
	h := newHarness(t, cfg, walletConfig())
	ctx := context.Background()

	wallets, err := h.db.Resource("wallets")
	require.NoError(t, err)
	for _, id := range []string{"w1", "w2"} {
		_, err = wallets.Insert(ctx, map[string]interface{}{"id": id, "balance": float64(0)})
		require.NoError(t, err)
	}

	require.NoError(t, h.plugin.Add(ctx, "wallets", "w1", "balance", 10))
	require.NoError(t, h.plugin.Add(ctx, "wallets", "w2", "balance", 20))

	require.NoError(t, h.plugin.Start(ctx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, h.plugin.Stop(stopCtx))
	}()

	require.Eventually(t, func() bool {
		w1, err1 := wallets.Get(ctx, "w1")
		w2, err2 := wallets.Get(ctx, "w2")
		return err1 == nil && err2 == nil &&
			w1["balance"] == float64(10) && w2["balance"] == float64(20)
	}, 10*time.Second, 100*time.Millisecond)
}

func TestPendingRecordIDsDistinct(t *testing.T) {
	cfg := Config{
		Resources:     map[string][]string{"wallets": {"balance"}},
		Consolidation: ConsolidationConfig{Mode: ConsolidationAsync},
	}
	h := newHarness(t, cfg, walletConfig())
	ctx := context.Background()

	require.NoError(t, h.plugin.Add(ctx, "wallets", "w1", "balance", 1))
	require.NoError(t, h.plugin.Add(ctx, "wallets", "w1", "balance", 2))
	require.NoError(t, h.plugin.Add(ctx, "wallets", "w2", "balance", 3))

	tgt, err := h.plugin.target("wallets")
	require.NoError(t, err)
	ids, err := h.plugin.pendingRecordIDs(ctx, tgt, "balance")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"w1", "w2"}, ids)
}
