package resource

import (
	"context"
	"sync"
)

// HookPoint names one of the six fixed hook points every resource emits.
type HookPoint string

const (
	BeforeInsert HookPoint = "beforeInsert"
	AfterInsert  HookPoint = "afterInsert"
	BeforeUpdate HookPoint = "beforeUpdate"
	AfterUpdate  HookPoint = "afterUpdate"
	BeforeDelete HookPoint = "beforeDelete"
	AfterDelete  HookPoint = "afterDelete"
)

// HookEvent carries the record data visible at a hook point.
type HookEvent struct {
	Resource string
	ID       string
	Record   map[string]interface{}
	// Prior holds the pre-operation record on update/delete hooks.
	Prior map[string]interface{}
}

// HookFunc runs at a hook point. A before-hook returning an error aborts
// the operation before anything is persisted.
type HookFunc func(ctx context.Context, evt *HookEvent) error

// hookRegistry holds one ordered slice of listeners per hook point, run in
// registration order.
type hookRegistry struct {
	mu    sync.Mutex
	hooks map[HookPoint][]HookFunc
}

func newHookRegistry() *hookRegistry {
	return &hookRegistry{hooks: make(map[HookPoint][]HookFunc)}
}

// On registers fn to run at point, in addition to any already registered.
func (r *hookRegistry) On(point HookPoint, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[point] = append(r.hooks[point], fn)
}

func (r *hookRegistry) listeners(point HookPoint) []HookFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]HookFunc(nil), r.hooks[point]...)
}

// runBefore executes before-hooks in order, stopping and returning the
// first error.
func (r *hookRegistry) runBefore(ctx context.Context, point HookPoint, evt *HookEvent) error {
	for _, fn := range r.listeners(point) {
		if err := fn(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// runAfter executes every after-hook and collects their errors rather than
// stopping at the first one; the caller logs them instead of failing the
// already-persisted operation.
func (r *hookRegistry) runAfter(ctx context.Context, point HookPoint, evt *HookEvent) []error {
	var errs []error
	for _, fn := range r.listeners(point) {
		if err := fn(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
