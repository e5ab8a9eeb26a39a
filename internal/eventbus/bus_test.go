package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewWithConfig(2, 10)
	defer bus.Close(context.Background())

	got := make(chan Event, 2)
	bus.Subscribe(EventTypeLightChanged, func(e Event) { got <- e })
	bus.Subscribe(EventTypeLightChanged, func(e Event) { got <- e })

	n := bus.Publish(Event{Type: EventTypeLightChanged, Data: map[string]any{"light_id": 1}})
	if n != 2 {
		t.Fatalf("Publish queued %d deliveries, want 2", n)
	}

	for i := 0; i < 2; i++ {
		select {
		case e := <-got:
			if e.Data["light_id"] != 1 {
				t.Errorf("unexpected payload %v", e.Data)
			}
			if e.Time.IsZero() {
				t.Error("event time not stamped")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := New()
	defer bus.Close(context.Background())

	if n := bus.Publish(Event{Type: EventTypeLightChanged}); n != 0 {
		t.Errorf("Publish queued %d deliveries with no subscribers", n)
	}
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	bus := NewWithConfig(1, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.Subscribe(EventTypeLightChanged, func(Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	bus.Publish(Event{Type: EventTypeLightChanged})
	<-started // worker is now blocked in the handler

	if n := bus.Publish(Event{Type: EventTypeLightChanged}); n != 1 {
		t.Fatalf("second publish queued %d, want 1", n)
	}

	done := make(chan int)
	go func() { done <- bus.Publish(Event{Type: EventTypeLightChanged}) }()
	select {
	case n := <-done:
		if n != 0 {
			t.Errorf("publish on a full queue queued %d, want 0", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}

	close(release)
	bus.Close(context.Background())
}

func TestHandlerPanicDoesNotKillWorker(t *testing.T) {
	bus := NewWithConfig(1, 4)
	defer bus.Close(context.Background())

	got := make(chan struct{}, 1)
	calls := 0
	bus.Subscribe(EventTypeLightChanged, func(Event) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		got <- struct{}{}
	})

	bus.Publish(Event{Type: EventTypeLightChanged})
	bus.Publish(Event{Type: EventTypeLightChanged})

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive handler panic")
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus := New()
	bus.Subscribe(EventTypeLightChanged, func(Event) {})
	bus.Close(context.Background())
	bus.Close(context.Background())

	if n := bus.Publish(Event{Type: EventTypeLightChanged}); n != 0 {
		t.Errorf("Publish after Close queued %d", n)
	}
}
