package event

import (
	"context"
	"sync"

	"github.com/formhub/backend/internal/domain/shared"
)

// DeferredEventBus queues events for one request and hands them to the
// wrapped EventBus only when Flush is called, after the request's
// transaction has committed. A deferred bus that is never flushed drops
// its events.
type DeferredEventBus struct {
	bus   *EventBus
	mu    sync.Mutex
	queue []shared.DomainEvent
}

// NewDeferredEventBus wraps bus. The wrapper does not own the bus or its
// subscriber table.
func NewDeferredEventBus(bus *EventBus) *DeferredEventBus {
	return &DeferredEventBus{bus: bus}
}

// Publish appends events to the queue without dispatching them
func (d *DeferredEventBus) Publish(_ context.Context, events ...shared.DomainEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, events...)
	return nil
}

// Subscribe registers on the wrapped bus's shared subscriber table
func (d *DeferredEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	d.bus.Subscribe(handler, eventTypes...)
}

// Flush publishes queued events oldest first, waiting for each to be
// handled before taking the next. Events queued by handlers during the
// flush are drained too. Flushing an empty queue does nothing.
func (d *DeferredEventBus) Flush(ctx context.Context) error {
	for {
		event, ok := d.pop()
		if !ok {
			return nil
		}
		if err := d.bus.Publish(ctx, event); err != nil {
			return err
		}
	}
}

// Pending returns the number of queued events
func (d *DeferredEventBus) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Discard drops all queued events
func (d *DeferredEventBus) Discard() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.queue)
	d.queue = nil
	return n
}

func (d *DeferredEventBus) pop() (shared.DomainEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false
	}
	event := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return event, true
}

var (
	_ shared.EventPublisher  = (*DeferredEventBus)(nil)
	_ shared.EventSubscriber = (*DeferredEventBus)(nil)
)
