package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/automaton/internal/action"
	"github.com/starford/automaton/internal/actionstore"
	"github.com/starford/automaton/internal/prefs"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishActionEventDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishActionEvent(actionstore.Event{Kind: actionstore.EventCreated, Key: "phone"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: action.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"key":"phone"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestOneMessagePerStoreEvent(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishActionEvent(actionstore.Event{Kind: actionstore.EventCreated, Key: "a"})
	b.PublishActionEvent(actionstore.Event{Kind: actionstore.EventUpdated, Key: "a"})

	time.Sleep(50 * time.Millisecond)
	var got []string
loop:
	for {
		select {
		case msg := <-ch:
			got = append(got, strings.SplitN(string(msg), "\n", 2)[0])
		default:
			break loop
		}
	}

	want := []string{"event: action.created", "event: action.updated"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestStoreSubscriptionFeedsBroker(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	store := actionstore.New(prefs.NewMemory(), nil)
	cancel := store.Subscribe(b.PublishActionEvent)
	defer cancel()

	_ = store.Append(action.New("phone", "tel:1"))
	_ = store.Update("phone", "tel:2")
	_ = store.Delete("phone")
	store.Load(context.Background())

	var got []string
	timeout := time.After(time.Second)
	for len(got) < 4 {
		select {
		case msg := <-ch:
			got = append(got, strings.SplitN(string(msg), "\n", 2)[0])
		case <-timeout:
			t.Fatalf("timeout, got %v", got)
		}
	}
	want := []string{"event: action.created", "event: action.updated", "event: action.deleted", "event: actions.reloaded"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishActionEvent(actionstore.Event{Kind: actionstore.EventUpdated, Key: "x"})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: action.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.PublishActionEvent(actionstore.Event{Kind: actionstore.EventUpdated, Key: "x"})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishActionEvent(actionstore.Event{Kind: actionstore.EventUpdated, Key: "x"})
}
