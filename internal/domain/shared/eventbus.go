package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler subscribes to
	EventTypes() []string
}

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish publishes one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber registers handlers for domain events
type EventSubscriber interface {
	// Subscribe registers a handler for specific event types.
	// If no event types are provided, handler.EventTypes() is used.
	Subscribe(handler EventHandler, eventTypes ...string)
}

// EventHandlerFunc adapts a function to the EventHandler interface
type EventHandlerFunc struct {
	Types []string
	Fn    func(ctx context.Context, event DomainEvent) error
}

// Handle calls the wrapped function
func (f EventHandlerFunc) Handle(ctx context.Context, event DomainEvent) error {
	return f.Fn(ctx, event)
}

// EventTypes returns the configured event types
func (f EventHandlerFunc) EventTypes() []string {
	return f.Types
}
