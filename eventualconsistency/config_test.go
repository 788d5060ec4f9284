package eventualconsistency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("S3DB_TEST_DEFAULTS", map[string][]string{"wallets": {"balance"}})
	require.NoError(t, err)

	require.Equal(t, ConsolidationAsync, cfg.Consolidation.Mode)
	require.True(t, cfg.Consolidation.Auto)
	require.Equal(t, 30*time.Second, cfg.Consolidation.interval())
	require.Equal(t, 24*time.Hour, cfg.Consolidation.window())
	require.Equal(t, 5, cfg.Consolidation.concurrency())
	require.Equal(t, 50, cfg.Consolidation.markAppliedConcurrency())
	require.Equal(t, 30*time.Second, cfg.Locks.timeout())
	require.Equal(t, 30*24*time.Hour, cfg.GarbageCollection.retention())
	require.Equal(t, time.UTC, cfg.Cohort.location())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("S3DB_TEST_ENV_EC_CONSOLIDATION_MODE", "sync")
	t.Setenv("S3DB_TEST_ENV_EC_CONSOLIDATION_INTERVAL_S", "120")
	t.Setenv("S3DB_TEST_ENV_EC_ANALYTICS_PERIODS", "hour,day")
	t.Setenv("S3DB_TEST_ENV_EC_GC_RETENTION_DAYS", "7")

	cfg, err := LoadConfig("S3DB_TEST_ENV", map[string][]string{"wallets": {"balance"}})
	require.NoError(t, err)
	require.Equal(t, ConsolidationSync, cfg.Consolidation.Mode)
	require.Equal(t, 120*time.Second, cfg.Consolidation.interval())
	require.Equal(t, []string{"hour", "day"}, cfg.Analytics.Periods)
	require.Equal(t, 7*24*time.Hour, cfg.GarbageCollection.retention())
}

func TestLoadConfigRejectsBadMode(t *testing.T) {
	t.Setenv("S3DB_TEST_BAD_EC_CONSOLIDATION_MODE", "both-at-once")
	_, err := LoadConfig("S3DB_TEST_BAD", map[string][]string{"wallets": {"balance"}})
	require.Error(t, err)
}

func TestLoadConfigRejectsBadPeriod(t *testing.T) {
	t.Setenv("S3DB_TEST_PERIOD_EC_ANALYTICS_PERIODS", "hour,decade")
	_, err := LoadConfig("S3DB_TEST_PERIOD", map[string][]string{"wallets": {"balance"}})
	require.Error(t, err)
}

func TestLoadConfigRequiresResources(t *testing.T) {
	_, err := LoadConfig("S3DB_TEST_EMPTY", nil)
	require.Error(t, err)
}

func TestCohortLocationFallsBackToUTC(t *testing.T) {
	require.Equal(t, time.UTC, CohortConfig{Timezone: "Not/AZone"}.location())

	ny := CohortConfig{Timezone: "America/New_York"}.location()
	require.Equal(t, "America/New_York", ny.String())
}
