package glue

import (
	"context"
	"fmt"
	"sync"
)

// --- Lifecycle events ---

// EventType names a point in the life of a write.
type EventType string

// Lifecycle event types.
const (
	EventBeforeInsert EventType = "BeforeInsert"
	EventAfterInsert  EventType = "AfterInsert"
	EventBeforeUpdate EventType = "BeforeUpdate"
	EventAfterUpdate  EventType = "AfterUpdate"
	EventBeforeDelete EventType = "BeforeDelete"
	EventAfterDelete  EventType = "AfterDelete"
)

// EventListener is called for the events it is registered for. entity is the instance
// written, or the prototype for deletes by key and DeleteAll. data carries the key
// values of a delete by key or the Filter of a DeleteAll, nil otherwise.
//
// An error from a Before listener aborts the write. An error from an After listener is
// returned to the caller although the write already happened; inside a unit of work the
// caller can still roll back.
type EventListener func(ctx context.Context, event EventType, entity interface{}, data interface{}) error

// hooks is the listener registry of one provider.
type hooks struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
}

func (h *hooks) add(event EventType, l EventListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners == nil {
		h.listeners = make(map[EventType][]EventListener)
	}
	h.listeners[event] = append(h.listeners[event], l)
}

// trigger runs the listeners of event in registration order and stops at the first
// failure.
func (h *hooks) trigger(ctx context.Context, event EventType, entity, data interface{}) error {
	h.mu.RLock()
	listeners := h.listeners[event]
	h.mu.RUnlock()

	for _, l := range listeners {
		if err := l(ctx, event, entity, data); err != nil {
			return fmt.Errorf("%s listener failed: %w", event, err)
		}
	}
	return nil
}

// On registers listener for event. Listeners run for writes made through the provider
// and through its units of work.
func (p *Provider) On(event EventType, listener EventListener) {
	p.hooks.add(event, listener)
}
