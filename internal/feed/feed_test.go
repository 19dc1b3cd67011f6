package feed

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before an event arrived")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestLocalBusFansOut(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()

	first, cancelFirst, _ := bus.Subscribe(ctx)
	defer cancelFirst()
	second, cancelSecond, _ := bus.Subscribe(ctx)
	defer cancelSecond()

	want := Event{Kind: KindPresenceChanged, SpaceID: "s1", UserID: "u1"}
	if err := bus.Publish(ctx, want); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := receive(t, first); got != want {
		t.Fatalf("first subscriber got %+v", got)
	}
	if got := receive(t, second); got != want {
		t.Fatalf("second subscriber got %+v", got)
	}
}

func TestLocalBusCancelClosesChannel(t *testing.T) {
	bus := NewLocalBus()
	ch, cancel, _ := bus.Subscribe(context.Background())
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if bus.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", bus.Subscribers())
	}
	if err := bus.Publish(context.Background(), Event{Kind: KindSpaceChanged}); err != nil {
		t.Fatalf("Publish() after cancel error = %v", err)
	}
}

func TestLocalBusContextCancelUnsubscribes(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, _ := bus.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not released after context cancel")
	}
}

func TestLocalBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewLocalBus()
	ch, cancel, _ := bus.Subscribe(context.Background())
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		if err := bus.Publish(context.Background(), Event{Kind: KindMessageCreated}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected buffer of %d, got %d", subscriberBuffer, len(ch))
	}
}
