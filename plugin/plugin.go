// Package plugin defines the lifecycle surface every database plugin
// implements. Concrete plugins — EventualConsistency, replication or
// telemetry drivers — are a variant set sharing this one small interface
// rather than a class hierarchy.
package plugin

import (
	"context"

	"github.com/kataras/go-events"
	"github.com/s3db-go/s3db/resource"
)

// DatabaseHandle is the subset of database operations a plugin needs at
// install time: looking up or defining resources, and reaching the
// database-level event emitter. Implemented by db.Database.
type DatabaseHandle interface {
	Resource(name string) (*resource.Resource, error)
	DefineResource(ctx context.Context, cfg resource.Config) (*resource.Resource, error)
	Events() EventEmitter
}

// EventEmitter is the minimal surface plugins need to emit typed events;
// satisfied by kataras/go-events.EventEmmiter via resource.Events().
type EventEmitter interface {
	Emit(event events.EventName, data ...interface{})
}

// Plugin is the lifecycle every installable plugin implements: Install
// wires it onto a database (declaring any internal resources it needs),
// Start begins its background work (schedulers, consolidators), Stop
// drains it gracefully.
type Plugin interface {
	Name() string
	Install(ctx context.Context, db DatabaseHandle) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Registry tracks installed plugins in registration order.
type Registry struct {
	plugins []Plugin
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register installs p onto db and tracks it for Start/Stop.
func (r *Registry) Register(ctx context.Context, db DatabaseHandle, p Plugin) error {
	if err := p.Install(ctx, db); err != nil {
		return err
	}
	r.plugins = append(r.plugins, p)
	return nil
}

// StartAll starts every registered plugin, in registration order.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, p := range r.plugins {
		if err := p.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every registered plugin, in reverse registration order,
// continuing past individual failures so one misbehaving plugin cannot
// block the others from draining.
func (r *Registry) StopAll(ctx context.Context) []error {
	var errs []error
	for i := len(r.plugins) - 1; i >= 0; i-- {
		if err := r.plugins[i].Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []Plugin {
	return append([]Plugin(nil), r.plugins...)
}
