package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/formhub/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// EventBus is the process-wide in-memory pub/sub.
// One instance is built at startup and injected where needed.
type EventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger

	// mu orders inflight.Add in Publish before inflight.Wait in Stop
	mu       sync.RWMutex
	stopped  bool
	inflight sync.WaitGroup
}

// NewEventBus creates a new in-memory event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// Registry returns the subscriber table. Wrappers keep this reference,
// so subscriptions made later are visible to them.
func (b *EventBus) Registry() *HandlerRegistry {
	return b.registry
}

// Subscribe registers a handler for specific event types.
// Without explicit types the handler's own EventTypes are used.
func (b *EventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	if len(eventTypes) == 0 {
		b.logger.Warn("handler subscribed without event types",
			zap.String("handler", handlerName(handler)),
		)
		return
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.String("handler", handlerName(handler)),
		zap.Strings("event_types", eventTypes),
	)
}

// Publish dispatches each event to its handlers, one after another, in
// registration order. Handler errors and panics are logged and never
// returned, so Publish always returns nil. Events published after Stop
// are dropped with a warning.
func (b *EventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		b.logger.Warn("event bus stopped, dropping events", zap.Int("count", len(events)))
		return nil
	}
	b.inflight.Add(1)
	b.mu.RUnlock()
	defer b.inflight.Done()

	for _, event := range events {
		handlers := b.registry.GetHandlers(event.EventType())
		if len(handlers) == 0 {
			b.logger.Warn("no handlers registered for event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
			)
			continue
		}

		b.logger.Debug("publishing event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Int("handlers", len(handlers)),
		)

		for _, handler := range handlers {
			if err := b.dispatchToHandler(ctx, handler, event); err != nil {
				b.logger.Error("handler failed to process event",
					zap.String("handler", handlerName(handler)),
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Start starts the event bus
func (b *EventBus) Start(ctx context.Context) error {
	b.logger.Info("event bus started",
		zap.Strings("event_types", b.registry.EventTypes()),
	)
	return nil
}

// Stop refuses new publishes, then waits for in-flight ones to finish or
// ctx to expire
func (b *EventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus stop: %w", ctx.Err())
	}
}

// dispatchToHandler runs one handler in its own span and turns a panic into an error
func (b *EventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "event.handle",
		telemetry.WithAttribute(telemetry.AttrEventType, event.EventType()),
		telemetry.WithAttribute(telemetry.AttrEventID, event.EventID()),
		telemetry.WithAttribute(telemetry.AttrEventHandler, handlerName(handler)),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
		telemetry.RecordError(span, err)
		span.End()
	}()

	return handler.Handle(ctx, event)
}

func handlerName(handler shared.EventHandler) string {
	return fmt.Sprintf("%T", handler)
}

var (
	_ shared.EventPublisher  = (*EventBus)(nil)
	_ shared.EventSubscriber = (*EventBus)(nil)
)
