package sse

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()
	t.Cleanup(func() {
		h.Stop()
		<-done
	})
	return h
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case e, ok := <-c.Events():
		if !ok {
			t.Fatal("client channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		e    Event
		want string
	}{
		{"named", Event{Name: "engine_state_event", Data: []byte(`{"in_flight":1}`)}, "event: engine_state_event\ndata: {\"in_flight\":1}\n\n"},
		{"unnamed", Event{Data: []byte(`{"type":"transcript.text.done"}`)}, "data: {\"type\":\"transcript.text.done\"}\n\n"},
		{"multiline", Event{Data: []byte("a\nb")}, "data: a\ndata: b\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, tt.e); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tt.want {
				t.Errorf("Encode() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestClient_SendPurgesOldest(t *testing.T) {
	c := NewClient("c", 2)
	if c.Send(Event{Data: []byte("1")}) || c.Send(Event{Data: []byte("2")}) {
		t.Fatal("nothing should be dropped below capacity")
	}
	if !c.Send(Event{Data: []byte("3")}) {
		t.Fatal("expected the oldest event to be purged")
	}

	if got := string(receive(t, c).Data); got != "2" {
		t.Errorf("first event = %s, want 2", got)
	}
	if got := string(receive(t, c).Data); got != "3" {
		t.Errorf("second event = %s, want 3", got)
	}
}

func TestClient_SendAfterCloseIsNoop(t *testing.T) {
	c := NewClient("c", 1)
	c.close()
	c.close()
	if c.Send(Event{}) {
		t.Error("send on closed client reported a drop")
	}
}

func TestHub_BroadcastAndReplay(t *testing.T) {
	h := runHub(t)

	first := NewClient("first", 4)
	h.Register(first)
	h.Broadcast(Event{Name: "state", Data: []byte("1")})
	if got := string(receive(t, first).Data); got != "1" {
		t.Errorf("first client got %s", got)
	}

	late := NewClient("late", 4)
	h.Register(late)
	if got := string(receive(t, late).Data); got != "1" {
		t.Errorf("late client should replay the last event, got %s", got)
	}

	if last, ok := h.Last(); !ok || string(last.Data) != "1" {
		t.Errorf("Last() = %v, %v", last, ok)
	}
	if h.ClientCount() != 2 {
		t.Errorf("ClientCount() = %d, want 2", h.ClientCount())
	}
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	h := runHub(t)
	c := NewClient("c", 1)
	h.Register(c)
	h.Unregister(c)

	select {
	case _, ok := <-c.Events():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client was not closed")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
}

func TestHub_StoppedHubDoesNotBlock(t *testing.T) {
	h := NewHub()
	h.Stop()
	h.Stop()

	done := make(chan struct{})
	go func() {
		h.Broadcast(Event{})
		h.Unregister(NewClient("x", 1))
		if h.Register(NewClient("y", 1)) {
			t.Error("Register on a stopped hub should fail")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub calls blocked after Stop")
	}
}

func TestServeSSE(t *testing.T) {
	h := runHub(t)
	h.Broadcast(Event{Name: "engine_state_event", Data: []byte(`{"in_queue":0}`)})
	for {
		if _, ok := h.Last(); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/state", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		ServeSSE(h, rec, req, "monitor-1", time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "event: engine_state_event\ndata: {\"in_queue\":0}\n\n") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestComponent(t *testing.T) {
	c := NewComponent("monitor", "/v1/state")
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h := c.Health(context.Background()); h.Status != "healthy" || h.Message != "0 clients connected" {
		t.Errorf("Health() = %+v", h)
	}
	if d := c.Describe(); d.Details != "path=/v1/state" || d.Type != "sse" {
		t.Errorf("Describe() = %+v", d)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}
