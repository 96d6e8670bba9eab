package openai_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/speechgate/component"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/openai"
	"github.com/kbukum/speechgate/sse"
)

type fakeStats struct {
	mu sync.Mutex
	q  observability.QueueStats
}

func (f *fakeStats) set(q observability.QueueStats) {
	f.mu.Lock()
	f.q = q
	f.mu.Unlock()
}

func (f *fakeStats) get() observability.QueueStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.q
}

func runHub(t *testing.T) *sse.Hub {
	t.Helper()
	hub := sse.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func waitLast(t *testing.T, hub *sse.Hub, want string) sse.Event {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if e, ok := hub.Last(); ok && string(e.Data) == want {
			return e
		}
		time.Sleep(5 * time.Millisecond)
	}
	e, _ := hub.Last()
	t.Fatalf("last event = %q, want %q", e.Data, want)
	return sse.Event{}
}

func TestMonitor_PublishesOnChange(t *testing.T) {
	hub := runHub(t)
	stats := &fakeStats{}
	stats.set(observability.QueueStats{InQueue: 2, InFlight: 1, MaxInFlight: 4})
	m := openai.NewMonitor(hub, stats.get, openai.MonitorConfig{Interval: time.Hour}, logger.NewNop())

	if !m.Publish() {
		t.Fatal("first publish should broadcast")
	}
	e := waitLast(t, hub, `{"in_flight":1,"in_queue":2,"max_in_flight":4}`)
	if e.Name != openai.EngineStateEvent {
		t.Errorf("event name = %q", e.Name)
	}

	if m.Publish() {
		t.Error("unchanged state should not broadcast")
	}

	stats.set(observability.QueueStats{InQueue: 0, InFlight: 4, MaxInFlight: 4})
	if !m.Publish() {
		t.Fatal("changed state should broadcast")
	}
	waitLast(t, hub, `{"in_flight":4,"in_queue":0,"max_in_flight":4}`)
	if got := m.State(); got.InFlight != 4 || got.InQueue != 0 {
		t.Errorf("State() = %+v", got)
	}
}

func TestMonitor_Lifecycle(t *testing.T) {
	hub := runHub(t)
	stats := &fakeStats{}
	m := openai.NewMonitor(hub, stats.get, openai.MonitorConfig{Interval: 10 * time.Millisecond}, logger.NewNop())

	if h := m.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	if h := m.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy after start, got %s", h.Status)
	}

	stats.set(observability.QueueStats{InQueue: 3, MaxInFlight: 1})
	waitLast(t, hub, `{"in_flight":0,"in_queue":3,"max_in_flight":1}`)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Errorf("second Stop should be a no-op: %v", err)
	}
}

func TestMonitor_ServeStreamsState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := runHub(t)
	stats := &fakeStats{}
	stats.set(observability.QueueStats{InQueue: 5, InFlight: 2, MaxInFlight: 2})
	m := openai.NewMonitor(hub, stats.get, openai.MonitorConfig{Interval: 10 * time.Millisecond}, logger.NewNop())
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	engine := gin.New()
	m.Register(engine, "/v1")
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/state", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /v1/state: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	var event, data string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			event = name
		}
		if d, ok := strings.CutPrefix(line, "data: "); ok {
			data = d
			break
		}
	}
	if event != openai.EngineStateEvent {
		t.Errorf("event = %q", event)
	}
	var state openai.EngineState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		t.Fatalf("invalid state %q: %v", data, err)
	}
	if state != (openai.EngineState{InFlight: 2, InQueue: 5, MaxInFlight: 2}) {
		t.Errorf("state = %+v", state)
	}
}
