package resource

import "github.com/kataras/go-events"

// Event names emitted by every resource's event surface.
const (
	EventAfterInsert events.EventName = "afterInsert"
	EventAfterUpdate events.EventName = "afterUpdate"
	EventAfterDelete events.EventName = "afterDelete"
)

// NewEmitter returns a fresh event emitter, one per resource and one for
// the database as a whole.
func NewEmitter() events.EventEmmiter {
	return events.New()
}
