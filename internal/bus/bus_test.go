package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestBus(t *testing.T) *PubSubBus {
	t.Helper()

	b := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(b.Close)

	return b
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := newTestBus(t)
	sub := b.Subscribe("scanner.barcode")

	b.Publish("scanner.barcode", "A")
	b.Publish("scanner.barcode", "B")

	for _, want := range []string{"A", "B"} {
		select {
		case got := <-sub:
			if got != want {
				t.Fatalf("unexpected payload: got %v, want %q", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestSubscribeMultipleTopics(t *testing.T) {
	b := newTestBus(t)
	sub := b.Subscribe("a", "b")

	b.Publish("b", 2)
	b.Publish("a", 1)

	got := map[any]bool{}
	for i := 0; i < 2; i++ {
		select {
		case v := <-sub:
			got[v] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d messages", i)
		}
	}
	if !got[1] || !got[2] {
		t.Fatalf("expected both payloads, got %v", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := newTestBus(t)
	sub := b.Subscribe("a")
	b.Unsubscribe(sub, "a")

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for channel close")
	}
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	b := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.Close()
	b.Close()

	b.Publish("a", 1)
	b.Unsubscribe(make(Subscription), "a")
}
