package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/speechgate/component"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/observability"
	"github.com/kbukum/speechgate/sse"
)

// EngineStateEvent is the SSE event name carrying EngineState payloads.
const EngineStateEvent = "engine_state_event"

// StatePath is the monitor route relative to the API prefix.
const StatePath = "/state"

// EngineState is the scheduler occupancy published to monitor clients.
type EngineState struct {
	InFlight    int64 `json:"in_flight"`
	InQueue     int64 `json:"in_queue"`
	MaxInFlight int64 `json:"max_in_flight"`
}

// Monitor samples the scheduler and broadcasts its state to an SSE hub
// whenever it changes. New subscribers receive the latest state first.
type Monitor struct {
	hub       *sse.Hub
	stats     func() observability.QueueStats
	interval  time.Duration
	keepAlive time.Duration
	log       *logger.Logger

	mu      sync.Mutex
	last    EngineState
	sent    bool
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

var (
	_ component.Component   = (*Monitor)(nil)
	_ component.Describable = (*Monitor)(nil)
)

// NewMonitor creates a monitor publishing snapshots from stats to hub.
func NewMonitor(hub *sse.Hub, stats func() observability.QueueStats, cfg MonitorConfig, log *logger.Logger) *Monitor {
	cfg.ApplyDefaults()
	return &Monitor{
		hub:       hub,
		stats:     stats,
		interval:  cfg.Interval,
		keepAlive: sse.DefaultKeepAlive,
		log:       log.WithComponent("state-monitor"),
	}
}

func (m *Monitor) Name() string { return "state-monitor" }

// Start begins sampling. The first state is published immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("state monitor already running")
	}
	ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.done = make(chan struct{})
	m.running = true

	go m.run(ctx, m.done)
	m.log.Info("state monitor started", logger.Fields("interval", m.interval.String()))
	return nil
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Publish()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Publish()
		}
	}
}

// Stop ends sampling.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.cancel()
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish samples the scheduler and broadcasts the state if it differs
// from the last one sent. It reports whether an event was broadcast.
func (m *Monitor) Publish() bool {
	q := m.stats()
	state := EngineState{InFlight: q.InFlight, InQueue: q.InQueue, MaxInFlight: q.MaxInFlight}

	m.mu.Lock()
	if m.sent && state == m.last {
		m.mu.Unlock()
		return false
	}
	m.last, m.sent = state, true
	m.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		m.log.Warn("encode engine state", logger.Fields(logger.FieldError, err.Error()))
		return false
	}
	m.hub.Broadcast(sse.Event{Name: EngineStateEvent, Data: data})
	return true
}

// State returns the last published state.
func (m *Monitor) State() EngineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Register mounts GET {prefix}/state.
func (m *Monitor) Register(r gin.IRouter, prefix string) {
	r.Group(prefix).GET(StatePath, m.Serve)
}

// Serve streams engine state events to the caller until it disconnects.
func (m *Monitor) Serve(c *gin.Context) {
	clientID := logger.RequestIDFromContext(c.Request.Context())
	if clientID == "" {
		clientID = uuid.NewString()
	}
	sse.ServeSSE(m.hub, c.Writer, c.Request, clientID, m.keepAlive)
}

func (m *Monitor) Health(context.Context) component.Health {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return component.Health{Name: m.Name(), Status: component.StatusUnhealthy, Message: "not running"}
	}
	return component.Health{
		Name:    m.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d subscribers", m.hub.ClientCount()),
	}
}

func (m *Monitor) Describe() component.Description {
	return component.Description{
		Name:    m.Name(),
		Type:    "monitor",
		Details: fmt.Sprintf("event=%s interval=%s", EngineStateEvent, m.interval),
	}
}
