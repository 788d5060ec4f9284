// Package db is the top-level entry point: open a database from a
// connection string, define and look up resources, and install/start/stop
// plugins against it.
package db

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kataras/go-events"
	"github.com/s3db-go/s3db/common"
	"github.com/s3db-go/s3db/objectstore"
	"github.com/s3db-go/s3db/plugin"
	"github.com/s3db-go/s3db/resource"
)

// Database is a connected object-store backend plus the resources defined
// on it and the plugins installed against it.
type Database struct {
	store objectstore.Client
	keys  *objectstore.KeyBuilder

	mu        sync.RWMutex
	resources map[string]*resource.Resource

	emitter events.EventEmmiter
	plugins *plugin.Registry
	logger  *common.ContextLogger
}

// Open parses connectionString (s3://, file://, or memory://) and returns
// a ready-to-use Database with no resources defined yet.
func Open(ctx context.Context, connectionString string) (*Database, error) {
	store, keys, err := objectstore.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("db: open %q: %w", connectionString, err)
	}
	return &Database{
		store:     store,
		keys:      keys,
		resources: make(map[string]*resource.Resource),
		emitter:   resource.NewEmitter(),
		plugins:   plugin.NewRegistry(),
		logger:    common.NewContextLogger(nil, map[string]interface{}{"component": "db"}),
	}, nil
}

// DefineResource compiles and registers a resource, returning it. Defining
// a resource under a name that already exists replaces it — callers
// typically call this once per resource at startup. Resources with async
// partitions get an opening reconciliation pass in the background, picking
// up any index drift a previous process left behind.
func (d *Database) DefineResource(ctx context.Context, cfg resource.Config) (*resource.Resource, error) {
	r, err := resource.New(cfg, d.store, d.keys)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.resources[cfg.Name] = r
	d.mu.Unlock()

	if cfg.AsyncPartitions && len(cfg.Partitions) > 0 {
		go func() {
			if _, err := r.Reconcile(context.Background()); err != nil {
				d.logger.WithField("resource", cfg.Name).WithError(err).Warn("opening partition reconciliation failed")
			}
		}()
	}
	return r, nil
}

// Resource looks up a previously defined resource by name.
func (d *Database) Resource(name string) (*resource.Resource, error) {
	d.mu.RLock()
	r, ok := d.resources[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("db: resource %q is not defined", name)
	}
	return r, nil
}

// Resources returns every defined resource's name.
func (d *Database) Resources() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.resources))
	for name := range d.resources {
		names = append(names, name)
	}
	return names
}

// Events returns the database-level event emitter, on which plugins
// publish their lifecycle and consolidation events.
func (d *Database) Events() plugin.EventEmitter {
	return d.emitter
}

// Install registers a plugin, running its Install hook against this
// database's DatabaseHandle surface.
func (d *Database) Install(ctx context.Context, p plugin.Plugin) error {
	return d.plugins.Register(ctx, d, p)
}

// StartPlugins starts every installed plugin, in installation order.
func (d *Database) StartPlugins(ctx context.Context) error {
	return d.plugins.StartAll(ctx)
}

// StopPlugins stops every installed plugin, in reverse installation order.
func (d *Database) StopPlugins(ctx context.Context) []error {
	return d.plugins.StopAll(ctx)
}

// Plugins returns the installed plugins, in installation order.
func (d *Database) Plugins() []plugin.Plugin {
	return d.plugins.Plugins()
}

// Close stops every installed plugin and releases the underlying
// object-store backend, if it holds closeable resources (only the file://
// backend does; s3:// and memory:// are no-ops here).
func (d *Database) Close(ctx context.Context) error {
	errs := d.StopPlugins(ctx)
	if closer, ok := d.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("db: close: %v", errs)
	}
	return nil
}

var _ plugin.DatabaseHandle = (*Database)(nil)
