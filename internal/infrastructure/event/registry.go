package event

import (
	"sync"

	"github.com/formhub/backend/internal/domain/shared"
)

// HandlerRegistry is the subscriber table shared by a bus and its deferred wrappers.
// Handlers are kept in registration order per event type.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler // eventType -> handlers
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string][]shared.EventHandler),
	}
}

// Register appends a handler for each of the given event types
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, eventType := range eventTypes {
		r.handlers[eventType] = append(r.handlers[eventType], handler)
	}
}

// GetHandlers returns a snapshot of the handlers for an event type.
// The snapshot is safe to iterate while other goroutines subscribe.
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := r.handlers[eventType]
	if len(handlers) == 0 {
		return nil
	}
	result := make([]shared.EventHandler, len(handlers))
	copy(result, handlers)
	return result
}

// EventTypes returns every event type with at least one handler
func (r *HandlerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
