package eventbus

import "testing"

func TestPublishFansOutAndDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: TypeLooperState, Data: StateChange{ID: 1, Name: "x", From: "enabled", To: "disabled"}})
	b.Publish(Event{Type: TypeLooperZeroDelta})

	if e := <-a; e.Type != TypeLooperState || e.Time.IsZero() {
		t.Fatalf("first event = %+v", e)
	}
	if len(c) != 2 {
		t.Fatalf("second subscriber got %d events, want 2", len(c))
	}
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", b.Dropped())
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatalf("channel still open after unsubscribe")
	}
	b.Publish(Event{Type: TypeConfigApplied})
	if len(c) != 3 {
		t.Fatalf("remaining subscriber got %d events", len(c))
	}
}
