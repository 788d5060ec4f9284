package eventualconsistency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kataras/go-events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/s3db-go/s3db/db"
	"github.com/s3db-go/s3db/lock"
	"github.com/s3db-go/s3db/resource"
	"github.com/s3db-go/s3db/schema"
)

type harness struct {
	db      *db.Database
	plugin  *Plugin
	lockMgr *lock.Manager
}

func newHarness(t *testing.T, cfg Config, targetCfgs ...resource.Config) *harness {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, "memory://"+t.Name())
	require.NoError(t, err)
	for _, rc := range targetCfgs {
		_, err := database.DefineResource(ctx, rc)
		require.NoError(t, err)
	}

	mr := miniredis.RunT(t)
	mgr := lock.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	p := New(cfg, mgr)
	require.NoError(t, database.Install(ctx, p))
	return &harness{db: database, plugin: p, lockMgr: mgr}
}

func walletConfig() resource.Config {
	return resource.Config{
		Name: "wallets",
		Attributes: []schema.AttributeDef{
			{Name: "balance", Type: "number", Required: true},
		},
	}
}

func syncWalletPluginConfig() Config {
	return Config{
		Resources:     map[string][]string{"wallets": {"balance"}},
		Consolidation: ConsolidationConfig{Mode: ConsolidationSync},
		Analytics:     AnalyticsConfig{Enabled: true, Periods: []string{"hour", "day"}},
		Checkpoints:   CheckpointsConfig{Enabled: true},
	}
}

func stubClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := clockNow
	clockNow = func() time.Time { return at }
	t.Cleanup(func() { clockNow = prev })
}

func listAllTransactions(t *testing.T, h *harness, resourceName, field string) []transaction {
	t.Helper()
	txRes, err := h.db.Resource(txResourceName(resourceName, field))
	require.NoError(t, err)

	var txs []transaction
	cursor := ""
	for {
		page, err := txRes.List(context.Background(), resource.ListOptions{Cursor: cursor, Limit: 1000})
		require.NoError(t, err)
		for _, rec := range page.Records {
			tx, err := transactionFromRecord(rec)
			require.NoError(t, err)
			txs = append(txs, tx)
		}
		if !page.IsTruncated {
			break
		}
		cursor = page.ContinuationToken
	}
	return txs
}

func TestSyncConsolidationWallet(t *testing.T) {
	h := newHarness(t, syncWalletPluginConfig(), walletConfig())
	ctx := context.Background()

	wallets, err := h.db.Resource("wallets")
	require.NoError(t, err)
	_, err = wallets.Insert(ctx, map[string]interface{}{"id": "w1", "balance": float64(0)})
	require.NoError(t, err)

	require.NoError(t, h.plugin.Add(ctx, "wallets", "w1", "balance", 1000))
	require.NoError(t, h.plugin.Sub(ctx, "wallets", "w1", "balance", 250))

	got, err := wallets.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, float64(750), got["balance"])

	txs := listAllTransactions(t, h, "wallets", "balance")
	require.Len(t, txs, 2)
	for _, tx := range txs {
		require.True(t, tx.Applied, "transaction %s must be applied after sync consolidation", tx.ID)
		require.NotNil(t, tx.AppliedAt)
	}
}

func TestAsyncBatchConsolidatesWithSinglePrimaryWrite(t *testing.T) {
	cfg := Config{
		Resources:     map[string][]string{"urls": {"clicks"}},
		Consolidation: ConsolidationConfig{Mode: ConsolidationAsync},
		Checkpoints:   CheckpointsConfig{Enabled: true},
	}
	h := newHarness(t, cfg, resource.Config{
		Name:       "urls",
		Attributes: []schema.AttributeDef{{Name: "clicks", Type: "number", Required: true}},
	})
	ctx := context.Background()

	urls, err := h.db.Resource("urls")
	require.NoError(t, err)
	_, err = urls.Insert(ctx, map[string]interface{}{"id": "url1", "clicks": float64(0)})
	require.NoError(t, err)

	var primaryWrites int64
	urls.Events().On(resource.EventAfterUpdate, func(...interface{}) {
		atomic.AddInt64(&primaryWrites, 1)
	})

	const n = 1000
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.plugin.Increment(ctx, "urls", "url1", "clicks")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	txs := listAllTransactions(t, h, "urls", "clicks")
	require.Len(t, txs, n)
	for _, tx := range txs {
		require.False(t, tx.Applied, "async mode must not consolidate on write")
	}

	result, err := h.plugin.Consolidate(ctx, "urls", "url1", "clicks")
	require.NoError(t, err)
	require.Equal(t, outcomeApplied, result.Kind)
	require.Equal(t, n, result.AppliedCount)
	require.Equal(t, float64(n), result.Value)

	got, err := urls.Get(ctx, "url1")
	require.NoError(t, err)
	require.Equal(t, float64(n), got["clicks"])
	require.EqualValues(t, 1, atomic.LoadInt64(&primaryWrites))

	for _, tx := range listAllTransactions(t, h, "urls", "clicks") {
		require.True(t, tx.Applied)
	}
}

func TestConsolidateSkipsWhenLockHeld(t *testing.T) {
	h := newHarness(t, syncWalletPluginConfig(), walletConfig())
	ctx := context.Background()

	lease, err := h.lockMgr.Acquire(ctx, "wallets:w1:balance", "someone-else", time.Minute)
	require.NoError(t, err)

	// The transaction is written but its sync consolidation is skipped.
	require.NoError(t, h.plugin.Add(ctx, "wallets", "w1", "balance", 5))
	txs := listAllTransactions(t, h, "wallets", "balance")
	require.Len(t, txs, 1)
	require.False(t, txs[0].Applied)

	require.NoError(t, h.lockMgr.Release(ctx, lease))
}

func TestConsolidateDefersWhenTargetMissing(t *testing.T) {
	h := newHarness(t, syncWalletPluginConfig(), walletConfig())
	ctx := context.Background()

	// No wallet "w9" exists: transactions accumulate but are never lost,
	// and the record is not auto-created.
	require.NoError(t, h.plugin.Add(ctx, "wallets", "w9", "balance", 100))
	require.NoError(t, h.plugin.Add(ctx, "wallets", "w9", "balance", 50))

	wallets, err := h.db.Resource("wallets")
	require.NoError(t, err)
	_, err = wallets.Get(ctx, "w9")
	require.ErrorIs(t, err, resource.ErrNotFound)

	txs := listAllTransactions(t, h, "wallets", "balance")
	require.Len(t, txs, 2)
	for _, tx := range txs {
		require.False(t, tx.Applied)
	}

	// Once the record appears, the next consolidation folds them in.
	_, err = wallets.Insert(ctx, map[string]interface{}{"id": "w9", "balance": float64(0)})
	require.NoError(t, err)

	result, err := h.plugin.Consolidate(ctx, "wallets", "w9", "balance")
	require.NoError(t, err)
	require.Equal(t, outcomeApplied, result.Kind)
	require.Equal(t, float64(150), result.Value)
}

func TestConsolidationIdempotent(t *testing.T) {
	h := newHarness(t, syncWalletPluginConfig(), walletConfig())
	ctx := context.Background()

	wallets, err := h.db.Resource("wallets")
	require.NoError(t, err)
	_, err = wallets.Insert(ctx, map[string]interface{}{"id": "w1", "balance": float64(10)})
	require.NoError(t, err)

	require.NoError(t, h.plugin.Set(ctx, "wallets", "w1", "balance", 500))
	require.NoError(t, h.plugin.Sub(ctx, "wallets", "w1", "balance", 100))

	for i := 0; i < 3; i++ {
		result, err := h.plugin.Consolidate(ctx, "wallets", "w1", "balance")
		require.NoError(t, err)
		if i > 0 {
			require.Equal(t, outcomeNoop, result.Kind, "replayed consolidation must be a no-op")
		}
	}

	got, err := wallets.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, float64(400), got["balance"])
}

func TestCheckpointRepairsInterruptedMarkApplied(t *testing.T) {
	h := newHarness(t, syncWalletPluginConfig(), walletConfig())
	ctx := context.Background()

	wallets, err := h.db.Resource("wallets")
	require.NoError(t, err)
	_, err = wallets.Insert(ctx, map[string]interface{}{"id": "w1", "balance": float64(0)})
	require.NoError(t, err)

	require.NoError(t, h.plugin.Add(ctx, "wallets", "w1", "balance", 40))

	// Simulate a crash after the checkpoint write but before mark-applied
	// persisted: flip the transaction back to pending.
	txs := listAllTransactions(t, h, "wallets", "balance")
	require.Len(t, txs, 1)
	txRes, err := h.db.Resource(txResourceName("wallets", "balance"))
	require.NoError(t, err)
	_, err = txRes.Update(ctx, txs[0].ID, map[string]interface{}{"applied": false})
	require.NoError(t, err)

	result, err := h.plugin.Consolidate(ctx, "wallets", "w1", "balance")
	require.NoError(t, err)
	require.Equal(t, outcomeApplied, result.Kind)
	require.Equal(t, 1, result.AppliedCount)

	// The value was not folded a second time.
	got, err := wallets.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, float64(40), got["balance"])

	txs = listAllTransactions(t, h, "wallets", "balance")
	require.Len(t, txs, 1)
	require.True(t, txs[0].Applied)
}

func TestNestedFieldConsolidation(t *testing.T) {
	cfg := Config{
		Resources:     map[string][]string{"pages": {"utmResults.medium"}},
		Consolidation: ConsolidationConfig{Mode: ConsolidationSync},
		Checkpoints:   CheckpointsConfig{Enabled: true},
	}
	h := newHarness(t, cfg, resource.Config{
		Name: "pages",
		Attributes: []schema.AttributeDef{
			{Name: "title", Type: "string", Required: true},
			{Name: "utmResults", Type: "json"},
		},
	})
	ctx := context.Background()

	pages, err := h.db.Resource("pages")
	require.NoError(t, err)
	_, err = pages.Insert(ctx, map[string]interface{}{
		"id":         "p1",
		"title":      "landing",
		"utmResults": map[string]interface{}{"source": float64(7)},
	})
	require.NoError(t, err)

	require.NoError(t, h.plugin.Add(ctx, "pages", "p1", "utmResults.medium", 1))
	require.NoError(t, h.plugin.Add(ctx, "pages", "p1", "utmResults.medium", 2))

	value, err := h.plugin.GetConsolidatedValue(ctx, "pages", "p1", "utmResults.medium", GetConsolidatedValueOptions{})
	require.NoError(t, err)
	require.Equal(t, float64(3), value)

	// Sibling keys under the json attribute survive the patch.
	got, err := pages.Get(ctx, "p1")
	require.NoError(t, err)
	utm, ok := got["utmResults"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, float64(7), utm["source"])
}

func TestGetConsolidatedValueFresh(t *testing.T) {
	cfg := syncWalletPluginConfig()
	cfg.Consolidation.Mode = ConsolidationAsync
	h := newHarness(t, cfg, walletConfig())
	ctx := context.Background()

	wallets, err := h.db.Resource("wallets")
	require.NoError(t, err)
	_, err = wallets.Insert(ctx, map[string]interface{}{"id": "w1", "balance": float64(0)})
	require.NoError(t, err)

	require.NoError(t, h.plugin.Add(ctx, "wallets", "w1", "balance", 30))

	stale, err := h.plugin.GetConsolidatedValue(ctx, "wallets", "w1", "balance", GetConsolidatedValueOptions{})
	require.NoError(t, err)
	require.Equal(t, float64(0), stale, "async write must not touch the primary")

	fresh, err := h.plugin.GetConsolidatedValue(ctx, "wallets", "w1", "balance", GetConsolidatedValueOptions{Fresh: true})
	require.NoError(t, err)
	require.Equal(t, float64(30), fresh)
}

func TestRecalculateReplaysFullHistory(t *testing.T) {
	h := newHarness(t, syncWalletPluginConfig(), walletConfig())
	ctx := context.Background()

	wallets, err := h.db.Resource("wallets")
	require.NoError(t, err)
	_, err = wallets.Insert(ctx, map[string]interface{}{"id": "w1", "balance": float64(0)})
	require.NoError(t, err)

	require.NoError(t, h.plugin.Add(ctx, "wallets", "w1", "balance", 100))
	require.NoError(t, h.plugin.Sub(ctx, "wallets", "w1", "balance", 25))

	// Corrupt the primary value out from under the plugin.
	_, err = wallets.Update(ctx, "w1", map[string]interface{}{"balance": float64(99999)})
	require.NoError(t, err)

	value, err := h.plugin.Recalculate(ctx, "wallets", "w1", "balance")
	require.NoError(t, err)
	require.Equal(t, float64(75), value)

	got, err := wallets.Get(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, float64(75), got["balance"])
}

func TestUnknownTargetRejected(t *testing.T) {
	h := newHarness(t, syncWalletPluginConfig(), walletConfig())
	ctx := context.Background()

	err := h.plugin.Add(ctx, "nope", "w1", "balance", 1)
	require.ErrorIs(t, err, ErrUnknownTarget)

	err = h.plugin.Add(ctx, "wallets", "w1", "untracked", 1)
	require.ErrorIs(t, err, ErrUnknownTarget)
}

func TestConsolidatedEventEmitted(t *testing.T) {
	h := newHarness(t, syncWalletPluginConfig(), walletConfig())
	ctx := context.Background()

	var mu sync.Mutex
	var payloads []map[string]interface{}
	h.db.Events().(events.EventEmmiter).On(EventConsolidated, func(args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		if len(args) > 0 {
			if m, ok := args[0].(map[string]interface{}); ok {
				payloads = append(payloads, m)
			}
		}
	})

	wallets, err := h.db.Resource("wallets")
	require.NoError(t, err)
	_, err = wallets.Insert(ctx, map[string]interface{}{"id": "w1", "balance": float64(0)})
	require.NoError(t, err)
	require.NoError(t, h.plugin.Add(ctx, "wallets", "w1", "balance", 1))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)
	require.Equal(t, "wallets", payloads[0]["resource"])
	require.Equal(t, "balance", payloads[0]["field"])
	require.Equal(t, 1, payloads[0]["recordCount"])
}
