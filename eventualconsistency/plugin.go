package eventualconsistency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/go-events"
	"github.com/s3db-go/s3db/common"
	"github.com/s3db-go/s3db/lock"
	pl "github.com/s3db-go/s3db/plugin"
	"github.com/s3db-go/s3db/resource"
)

// Event names emitted on the database's event emitter, all under the
// plg:eventual-consistency: namespace.
const (
	EventStarted            events.EventName = "plg:eventual-consistency:started"
	EventStopped            events.EventName = "plg:eventual-consistency:stopped"
	EventConsolidated       events.EventName = "plg:eventual-consistency:consolidated"
	EventConsolidationError events.EventName = "plg:eventual-consistency:consolidation-error"
	EventGCCompleted        events.EventName = "plg:eventual-consistency:gc-completed"
	EventGCError            events.EventName = "plg:eventual-consistency:gc-error"
)

// target bundles one configured (resource, field-set)'s runtime handles:
// the tracked resource itself and, per field, its transaction, analytics,
// and checkpoint resources.
type target struct {
	name         string
	resource     *resource.Resource
	fields       []string
	transactions map[string]*resource.Resource
	analytics    map[string]*resource.Resource
	checkpoints  map[string]*resource.Resource
}

// Plugin turns declared numeric fields into append-only transaction logs
// with deterministic consolidation. It implements plugin.Plugin, the same
// tagged-variant lifecycle every installable plugin shares.
type Plugin struct {
	cfg      Config
	lockMgr  *lock.Manager
	ownsLock bool
	owner    string
	logger   *common.ContextLogger

	mu      sync.RWMutex
	targets map[string]*target

	cohortLocks *cohortLocks

	db     pl.DatabaseHandle
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Plugin from cfg. If lockMgr is nil, Install connects one
// from cfg.RedisURL.
func New(cfg Config, lockMgr *lock.Manager) *Plugin {
	return &Plugin{
		cfg:         cfg,
		lockMgr:     lockMgr,
		owner:       "ec-" + uuid.NewString(),
		logger:      common.NewContextLogger(nil, map[string]interface{}{"component": "eventualconsistency"}),
		targets:     make(map[string]*target),
		cohortLocks: newCohortLocks(),
	}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "eventual-consistency" }

// Install implements plugin.Plugin: for every configured (resource, field)
// it defines the transaction/analytics/checkpoint resources and binds the
// already-defined target resource.
func (p *Plugin) Install(ctx context.Context, db pl.DatabaseHandle) error {
	p.db = db

	if p.lockMgr == nil {
		mgr, err := lock.New(ctx, p.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("eventualconsistency: install: %w", err)
		}
		p.lockMgr = mgr
		p.ownsLock = true
	}

	for resourceName, fields := range p.cfg.Resources {
		res, err := db.Resource(resourceName)
		if err != nil {
			return fmt.Errorf("eventualconsistency: target resource %q: %w", resourceName, err)
		}

		t := &target{
			name:         resourceName,
			resource:     res,
			fields:       fields,
			transactions: make(map[string]*resource.Resource),
			analytics:    make(map[string]*resource.Resource),
			checkpoints:  make(map[string]*resource.Resource),
		}

		for _, field := range fields {
			txRes, err := db.DefineResource(ctx, txResourceConfig(resourceName, field))
			if err != nil {
				return fmt.Errorf("eventualconsistency: define tx resource for %s.%s: %w", resourceName, field, err)
			}
			t.transactions[field] = txRes

			anRes, err := db.DefineResource(ctx, analyticsResourceConfig(resourceName, field))
			if err != nil {
				return fmt.Errorf("eventualconsistency: define analytics resource for %s.%s: %w", resourceName, field, err)
			}
			t.analytics[field] = anRes

			ckRes, err := db.DefineResource(ctx, checkpointResourceConfig(resourceName, field))
			if err != nil {
				return fmt.Errorf("eventualconsistency: define checkpoint resource for %s.%s: %w", resourceName, field, err)
			}
			t.checkpoints[field] = ckRes
		}

		p.mu.Lock()
		p.targets[resourceName] = t
		p.mu.Unlock()
	}

	return nil
}

// Start implements plugin.Plugin: launches the auto-consolidation scheduler
// and garbage-collection loop, each a time.Ticker-driven goroutine
// cancelled on Stop.
func (p *Plugin) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	if p.cfg.Consolidation.Auto {
		p.wg.Add(1)
		go p.runScheduler(runCtx)
	}
	if p.cfg.GarbageCollection.Enabled {
		p.wg.Add(1)
		go p.runGC(runCtx)
	}

	p.emit(EventStarted, nil)
	p.logger.Info("eventual consistency plugin started")
	return nil
}

// Stop implements plugin.Plugin: cancels the background loops and waits
// for in-flight work to drain, bounded by ctx.
func (p *Plugin) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if p.ownsLock && p.lockMgr != nil {
		if err := p.lockMgr.Close(); err != nil {
			p.logger.WithError(err).Warn("failed closing lock manager")
		}
	}

	p.emit(EventStopped, nil)
	p.logger.Info("eventual consistency plugin stopped")
	return nil
}

func (p *Plugin) emit(name events.EventName, data interface{}) {
	if p.db == nil {
		return
	}
	p.db.Events().Emit(name, data)
}

func (p *Plugin) target(resourceName string) (*target, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.targets[resourceName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, resourceName)
	}
	return t, nil
}

func (t *target) hasField(field string) bool {
	_, ok := t.transactions[field]
	return ok
}

var _ pl.Plugin = (*Plugin)(nil)

// clockNow is swapped out by tests that need to place transactions in
// specific cohorts or age them past the GC retention window.
var clockNow = time.Now
