package events

import (
	"context"
	"testing"
	"time"

	"eventcover_backend/platform/logger"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishContainsPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	ran := make(chan struct{})
	bus.Subscribe("boom", HandlerFunc(func(ctx context.Context, event Event) error {
		defer close(ran)
		panic("handler bug")
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "boom"})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("panicking handler never ran")
	}

	// The bus, and the process, must still dispatch after the panic.
	delivered := make(chan struct{})
	bus.Subscribe("next", HandlerFunc(func(ctx context.Context, event Event) error {
		close(delivered)
		return nil
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "next"})

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("handler registered after a panic never ran")
	}
}

func TestPublishSyncReturnsFirstHandlerError(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))

	calls := 0
	bus.Subscribe("sync", HandlerFunc(func(ctx context.Context, event Event) error {
		calls++
		return context.DeadlineExceeded
	}))
	bus.Subscribe("sync", HandlerFunc(func(ctx context.Context, event Event) error {
		calls++
		return nil
	}))

	if err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "sync"}); err == nil {
		t.Fatal("expected the first handler's error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (dispatch stops at the first error)", calls)
	}
}
