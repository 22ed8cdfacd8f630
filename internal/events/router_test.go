package events

import (
	"sync"
	"testing"
	"time"
)

func openedEvent(session string) *ConnectionOpenedEvent {
	return &ConnectionOpenedEvent{
		BaseEvent: NewControllerEvent(EventConnectionOpened),
		SessionID: session,
	}
}

func TestNewRouter(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"default buffer size", 0, DefaultBufferSize},
		{"negative buffer size uses default", -10, DefaultBufferSize},
		{"custom buffer size", 50, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.size)
			if r.bufferSize != tt.want {
				t.Errorf("bufferSize = %d, want %d", r.bufferSize, tt.want)
			}
		})
	}
}

func TestRouterEmitSubscribe(t *testing.T) {
	t.Run("single subscriber receives event", func(t *testing.T) {
		r := NewRouter(10)
		defer r.Close()

		ch := r.Subscribe()
		r.Emit(openedEvent("s1"))

		select {
		case received := <-ch:
			opened, ok := received.(*ConnectionOpenedEvent)
			if !ok {
				t.Fatalf("expected *ConnectionOpenedEvent, got %T", received)
			}
			if opened.SessionID != "s1" {
				t.Errorf("SessionID = %q, want s1", opened.SessionID)
			}
		case <-time.After(time.Second):
			t.Error("timeout waiting for event")
		}
	})

	t.Run("multiple subscribers each receive all events", func(t *testing.T) {
		r := NewRouter(10)
		defer r.Close()

		subs := []<-chan Event{r.Subscribe(), r.Subscribe(), r.Subscribe()}
		for i := 0; i < 3; i++ {
			r.Emit(openedEvent("s"))
		}

		for _, ch := range subs {
			for i := 0; i < 3; i++ {
				select {
				case <-ch:
				case <-time.After(time.Second):
					t.Fatalf("timeout waiting for event %d", i)
				}
			}
		}
	})

	t.Run("events keep emission order", func(t *testing.T) {
		r := NewRouter(10)
		defer r.Close()

		ch := r.Subscribe()
		for _, id := range []string{"a", "b", "c"} {
			r.Emit(openedEvent(id))
		}
		for _, want := range []string{"a", "b", "c"} {
			got := (<-ch).(*ConnectionOpenedEvent).SessionID
			if got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		}
	})
}

func TestRouterFullSubscriberDrops(t *testing.T) {
	r := NewRouter(1)
	defer r.Close()

	ch := r.Subscribe()
	r.Emit(openedEvent("first"))
	r.Emit(openedEvent("second"))

	if r.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", r.Dropped())
	}
	if got := (<-ch).(*ConnectionOpenedEvent).SessionID; got != "first" {
		t.Errorf("kept %q, want first", got)
	}
}

func TestRouterSubscribeBuffered(t *testing.T) {
	r := NewRouter(1)
	defer r.Close()

	ch := r.SubscribeBuffered(5)
	for i := 0; i < 5; i++ {
		r.Emit(openedEvent("s"))
	}
	if len(ch) != 5 {
		t.Errorf("buffered %d events, want 5", len(ch))
	}
	if r.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", r.Dropped())
	}
}

func TestRouterUnsubscribe(t *testing.T) {
	r := NewRouter(10)
	defer r.Close()

	ch := r.Subscribe()
	other := r.Subscribe()
	r.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed")
	}

	r.Emit(openedEvent("s"))
	select {
	case <-other:
	case <-time.After(time.Second):
		t.Error("remaining subscriber missed event")
	}

	// Second unsubscribe and unknown channels are no-ops.
	r.Unsubscribe(ch)
	r.Unsubscribe(make(chan Event))
}

func TestRouterClose(t *testing.T) {
	r := NewRouter(10)
	ch := r.Subscribe()

	r.Close()
	r.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}

	r.Emit(openedEvent("after"))

	late := r.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
}

func TestRouterConcurrentEmit(t *testing.T) {
	r := NewRouter(1000)
	defer r.Close()

	ch := r.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Emit(openedEvent("s"))
			}
		}()
	}
	wg.Wait()

	if len(ch) != 500 {
		t.Errorf("received %d events, want 500", len(ch))
	}
}
