package messaging

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fundgate/internal/shared/events"
)

func receive(t *testing.T, sink chan events.Envelope) events.Envelope {
	t.Helper()
	select {
	case got := <-sink:
		return got
	case <-time.After(time.Second):
		t.Fatalf("subscriber did not receive event")
	}
	return events.Envelope{}
}

func TestBusDeliversOncePerGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewBus(nil)
	escrow := make(chan events.Envelope, 4)
	audit := make(chan events.Envelope, 4)
	subscribe := func(group string, sink chan events.Envelope) {
		if err := bus.Subscribe(ctx, "donation.completed", group, func(_ context.Context, event events.Envelope) error {
			sink <- event
			return nil
		}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	subscribe("escrow", escrow)
	subscribe("escrow", escrow)
	subscribe("audit", audit)

	if err := bus.Publish(ctx, "donation.completed", events.Envelope{EventID: "evt-1", EventType: "donation.completed"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := receive(t, escrow); got.EventID != "evt-1" {
		t.Fatalf("unexpected event id: %s", got.EventID)
	}
	if got := receive(t, audit); got.EventID != "evt-1" {
		t.Fatalf("unexpected event id: %s", got.EventID)
	}
	select {
	case extra := <-escrow:
		t.Fatalf("group members must not both receive the event: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusRetriesFailingHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	retryStep = time.Millisecond

	bus := NewBus(nil)
	var calls atomic.Int32
	done := make(chan events.Envelope, 1)
	if err := bus.Subscribe(ctx, "vote.cast", "escrow", func(_ context.Context, event events.Envelope) error {
		if calls.Add(1) < handlerAttempts {
			return errors.New("database is restarting")
		}
		done <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, "vote.cast", events.Envelope{EventID: "evt-2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	receive(t, done)
	if calls.Load() != handlerAttempts {
		t.Fatalf("expected %d attempts, got %d", handlerAttempts, calls.Load())
	}
}

func TestBusPublishHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus(nil)
	block := make(chan struct{})
	defer close(block)
	if err := bus.Subscribe(context.Background(), "refund.issued", "slow", func(context.Context, events.Envelope) error {
		<-block
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// One event is held by the handler, the rest fill the queue.
	for i := 0; i < busQueueSize+1; i++ {
		if err := bus.Publish(ctx, "refund.issued", events.Envelope{EventID: "evt"}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	cancel()
	if err := bus.Publish(ctx, "refund.issued", events.Envelope{EventID: "evt-late"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestBusRemovesGroupOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus(nil)
	if err := bus.Subscribe(ctx, "vote.cast", "escrow", func(context.Context, events.Envelope) error { return nil }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if bus.groupCount("vote.cast") != 1 {
		t.Fatalf("expected one group")
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if bus.groupCount("vote.cast") == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("group was not removed after cancel")
}
