package eventualconsistency

import (
	"fmt"
	"time"

	"github.com/s3db-go/s3db/config"
)

// ConsolidationMode selects whether Add/Sub/Set block for consolidation
// (sync) or return immediately and rely on the scheduler (async).
type ConsolidationMode string

const (
	ConsolidationSync  ConsolidationMode = "sync"
	ConsolidationAsync ConsolidationMode = "async"
)

// ConsolidationConfig configures the consolidation algorithm and its
// auto-consolidation scheduler.
type ConsolidationConfig struct {
	Mode                   ConsolidationMode
	Auto                   bool
	IntervalSeconds        int
	WindowHours            int
	Concurrency            int
	MarkAppliedConcurrency int
}

// AnalyticsConfig configures incremental cohort analytics.
type AnalyticsConfig struct {
	Enabled bool
	// Periods is a subset of {hour, day, week, month}.
	Periods []string
	Metrics []string
}

// LocksConfig configures the distributed lock manager's lease TTL.
type LocksConfig struct {
	TimeoutSeconds int
}

// GarbageCollectionConfig configures the applied-transaction GC loop.
type GarbageCollectionConfig struct {
	Enabled         bool
	IntervalSeconds int
	RetentionDays   int
}

// CheckpointsConfig configures checkpoint persistence.
type CheckpointsConfig struct {
	Enabled       bool
	Strategy      string // loaded but not consulted: every applying consolidation writes a checkpoint
	RetentionDays int
}

// CohortConfig configures cohort key derivation.
type CohortConfig struct {
	Timezone string
}

// Config is the EventualConsistency plugin's full configuration.
type Config struct {
	// Resources maps each target resource name to the numeric fields it
	// tracks. Dotted paths address nested json leaves.
	Resources         map[string][]string
	Consolidation     ConsolidationConfig
	Analytics         AnalyticsConfig
	Locks             LocksConfig
	GarbageCollection GarbageCollectionConfig
	Checkpoints       CheckpointsConfig
	Cohort            CohortConfig
	// RedisURL is the connection string for the lock manager's Redis
	// client. Ignored when a Manager is supplied directly to New.
	RedisURL string
}

func (c ConsolidationConfig) interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c ConsolidationConfig) window() time.Duration {
	if c.WindowHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.WindowHours) * time.Hour
}

func (c ConsolidationConfig) concurrency() int {
	if c.Concurrency <= 0 {
		return 5
	}
	return c.Concurrency
}

func (c ConsolidationConfig) markAppliedConcurrency() int {
	if c.MarkAppliedConcurrency <= 0 {
		return 50
	}
	return c.MarkAppliedConcurrency
}

func (c LocksConfig) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c GarbageCollectionConfig) interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c GarbageCollectionConfig) retention() time.Duration {
	days := c.RetentionDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

func (c CohortConfig) location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig loads plugin configuration from the environment, the way
// config.LoadStoreConfig and config.LoadServiceConfig use config.EnvConfig:
// prefix-based env vars with typed getters, validated before use. resources
// must be supplied by the caller (a map literal in code, not env-driven —
// env vars don't carry structured {resource: [fields]} declarations well).
func LoadConfig(prefix string, resources map[string][]string) (Config, error) {
	env := config.NewEnvConfig(prefix)

	cfg := Config{
		Resources: resources,
		Consolidation: ConsolidationConfig{
			Mode:                   ConsolidationMode(env.GetString("EC_CONSOLIDATION_MODE", string(ConsolidationAsync))),
			Auto:                   env.GetBool("EC_CONSOLIDATION_AUTO", true),
			IntervalSeconds:        env.GetInt("EC_CONSOLIDATION_INTERVAL_S", 30),
			WindowHours:            env.GetInt("EC_CONSOLIDATION_WINDOW_H", 24),
			Concurrency:            env.GetInt("EC_CONSOLIDATION_CONCURRENCY", 5),
			MarkAppliedConcurrency: env.GetInt("EC_MARK_APPLIED_CONCURRENCY", 50),
		},
		Analytics: AnalyticsConfig{
			Enabled: env.GetBool("EC_ANALYTICS_ENABLED", true),
			Periods: env.GetStringSlice("EC_ANALYTICS_PERIODS", []string{"hour", "day", "week", "month"}),
			Metrics: env.GetStringSlice("EC_ANALYTICS_METRICS", []string{"count", "sum", "min", "max", "avg"}),
		},
		Locks: LocksConfig{
			TimeoutSeconds: env.GetInt("EC_LOCK_TIMEOUT_S", 30),
		},
		GarbageCollection: GarbageCollectionConfig{
			Enabled:         env.GetBool("EC_GC_ENABLED", true),
			IntervalSeconds: env.GetInt("EC_GC_INTERVAL_S", 86400),
			RetentionDays:   env.GetInt("EC_GC_RETENTION_DAYS", 30),
		},
		Checkpoints: CheckpointsConfig{
			Enabled:       env.GetBool("EC_CHECKPOINTS_ENABLED", true),
			Strategy:      env.GetString("EC_CHECKPOINTS_STRATEGY", "every-consolidation"),
			RetentionDays: env.GetInt("EC_CHECKPOINTS_RETENTION_DAYS", 90),
		},
		Cohort: CohortConfig{
			Timezone: env.GetString("EC_COHORT_TIMEZONE", "UTC"),
		},
		RedisURL: env.GetString("EC_REDIS_URL", "redis://localhost:6379/0"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	v := config.NewValidator()
	v.RequireOneOf("Consolidation.Mode", string(c.Consolidation.Mode), []string{string(ConsolidationSync), string(ConsolidationAsync)})
	for _, p := range c.Analytics.Periods {
		v.RequireOneOf("Analytics.Periods["+p+"]", p, []string{"hour", "day", "week", "month"})
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("eventualconsistency: %w", err)
	}
	if len(c.Resources) == 0 {
		return fmt.Errorf("eventualconsistency: no resources/fields configured")
	}
	return nil
}
