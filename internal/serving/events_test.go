package serving

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEnginePublishesLifecycleEvents(t *testing.T) {
	pub := NewMemoryPublisher()
	e := New(Config{Logger: zerolog.Nop(), MaxBatchWait: 5 * time.Millisecond, Publisher: pub})
	t.Cleanup(func() { _ = e.Close() })

	if err := e.Register(simModel("m1")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.Infer(context.Background(), "m1", input2(1, 1)); err != nil {
		t.Fatalf("infer: %v", err)
	}
	if err := e.Unregister("m1"); err != nil {
		t.Fatalf("unregister: %v", err)
	}

	var names []string
	for _, ev := range pub.Events() {
		names = append(names, ev.Name)
	}
	for _, want := range []string{"model_registered", "batch_completed", "model_unregistered"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing event %q in %v", want, names)
		}
	}
}

func TestHubFanOutAndUnsubscribe(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe()

	h.Publish(Event{Name: "batch_completed", ModelID: "m"})
	select {
	case ev := <-ch:
		if ev.Name != "batch_completed" || ev.ModelID != "m" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatalf("subscriber did not receive event")
	}

	unsubscribe()
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	h.Publish(Event{Name: "batch_completed"})
	// Unsubscribe is idempotent.
	unsubscribe()
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for i := 0; i < 100; i++ {
		h.Publish(Event{Name: "tick"})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected buffer full at %d, got %d", cap(ch), len(ch))
	}
}
