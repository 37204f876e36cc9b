package event

import (
	"context"
	"errors"
	"testing"

	"github.com/formhub/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDeferredEventBus_PublishDoesNotDispatch(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	handler := newTestHandler("h", nil, "TestEvent")
	bus.Subscribe(handler)

	deferred := NewDeferredEventBus(bus)
	require.NoError(t, deferred.Publish(context.Background(), newTestEvent("TestEvent", 1)))

	assert.Empty(t, handler.getHandled())
	assert.Equal(t, 1, deferred.Pending())
}

func TestDeferredEventBus_FlushPreservesOrder(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	rec := &recorder{}
	bus.Subscribe(newTestHandler("a", rec), "A")
	bus.Subscribe(newTestHandler("b", rec), "B")

	deferred := NewDeferredEventBus(bus)
	var want []string
	for i := 0; i < 10; i++ {
		eventType, name := "A", "a"
		if i%3 == 0 {
			eventType, name = "B", "b"
		}
		event := newTestEvent(eventType, i)
		want = append(want, name+":"+event.EventID().String())
		require.NoError(t, deferred.Publish(context.Background(), event))
	}

	require.NoError(t, deferred.Flush(context.Background()))

	assert.Equal(t, want, rec.get())
	assert.Zero(t, deferred.Pending())
}

func TestDeferredEventBus_FlushIsIdempotent(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	handler := newTestHandler("h", nil, "TestEvent")
	bus.Subscribe(handler)

	deferred := NewDeferredEventBus(bus)
	require.NoError(t, deferred.Publish(context.Background(), newTestEvent("TestEvent", 1), newTestEvent("TestEvent", 2)))

	require.NoError(t, deferred.Flush(context.Background()))
	require.NoError(t, deferred.Flush(context.Background()))

	assert.Len(t, handler.getHandled(), 2)
}

func TestDeferredEventBus_FlushEmptyQueue(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	handler := newTestHandler("h", nil, "TestEvent")
	bus.Subscribe(handler)

	deferred := NewDeferredEventBus(bus)

	require.NoError(t, deferred.Flush(context.Background()))
	assert.Empty(t, handler.getHandled())
}

func TestDeferredEventBus_SeesLateSubscriptions(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	deferred := NewDeferredEventBus(bus)
	require.NoError(t, deferred.Publish(context.Background(), newTestEvent("TestEvent", 1)))

	late := newTestHandler("late", nil, "TestEvent")
	bus.Subscribe(late)

	require.NoError(t, deferred.Flush(context.Background()))
	assert.Len(t, late.getHandled(), 1)
}

func TestDeferredEventBus_SubscribeSharesTable(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	deferred := NewDeferredEventBus(bus)

	handler := newTestHandler("h", nil, "TestEvent")
	deferred.Subscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("TestEvent", 1)))
	assert.Len(t, handler.getHandled(), 1)
}

func TestDeferredEventBus_DiscardDropsEvents(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	handler := newTestHandler("h", nil, "TestEvent")
	bus.Subscribe(handler)

	deferred := NewDeferredEventBus(bus)
	require.NoError(t, deferred.Publish(context.Background(), newTestEvent("TestEvent", 1)))

	assert.Equal(t, 1, deferred.Discard())
	require.NoError(t, deferred.Flush(context.Background()))
	assert.Empty(t, handler.getHandled())
}

func TestDeferredEventBus_FailingHandlerDoesNotStopFlush(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	failing := newTestHandler("failing", nil, "TestEvent")
	failing.err = errors.New("boom")
	healthy := newTestHandler("healthy", nil, "TestEvent")
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	deferred := NewDeferredEventBus(bus)
	require.NoError(t, deferred.Publish(context.Background(), newTestEvent("TestEvent", 1), newTestEvent("TestEvent", 2)))

	require.NoError(t, deferred.Flush(context.Background()))
	assert.Len(t, failing.getHandled(), 2)
	assert.Len(t, healthy.getHandled(), 2)
}

func TestDeferredEventBus_EventsQueuedDuringFlush(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	deferred := NewDeferredEventBus(bus)
	rec := &recorder{}

	bus.Subscribe(shared.EventHandlerFunc{
		Types: []string{"First"},
		Fn: func(ctx context.Context, event shared.DomainEvent) error {
			rec.add("first")
			return deferred.Publish(ctx, newTestEvent("Second", 2))
		},
	})
	bus.Subscribe(shared.EventHandlerFunc{
		Types: []string{"Second"},
		Fn: func(ctx context.Context, event shared.DomainEvent) error {
			rec.add("second")
			return nil
		},
	})

	require.NoError(t, deferred.Publish(context.Background(), newTestEvent("First", 1)))
	require.NoError(t, deferred.Flush(context.Background()))

	assert.Equal(t, []string{"first", "second"}, rec.get())
	assert.Zero(t, deferred.Pending())
}
