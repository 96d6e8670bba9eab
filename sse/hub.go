package sse

import (
	"sync"

	"github.com/kbukum/speechgate/logger"
)

const defaultClientBuffer = 16

// Client is one connected SSE subscriber.
type Client struct {
	id     string
	mu     sync.Mutex
	events chan Event
	closed bool
}

// NewClient creates a client whose buffer holds up to size events.
func NewClient(id string, size int) *Client {
	if size <= 0 {
		size = defaultClientBuffer
	}
	return &Client{id: id, events: make(chan Event, size)}
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// Events returns the channel the connection loop drains. It is closed when
// the client is unregistered.
func (c *Client) Events() <-chan Event { return c.events }

// Send queues e without blocking. When the buffer is full the oldest queued
// event is purged, since subscribers only care about the latest state.
// It reports whether an event had to be dropped.
func (c *Client) Send(e Event) (dropped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	for {
		select {
		case c.events <- e:
			return dropped
		default:
		}
		select {
		case <-c.events:
			dropped = true
		default:
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// Hub fans events out to registered clients. New clients first receive the
// most recent event, so a late subscriber sees the current state at once.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}
	stopOnce   sync.Once

	mu   sync.RWMutex
	last *Event
	log  *logger.Logger
}

// NewHub creates a hub. Run must be started before clients register.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 64),
		done:       make(chan struct{}),
		log:        logger.WithComponent("sse"),
	}
}

// Run is the hub's event loop. It returns after Stop, closing every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			last := h.last
			total := len(h.clients)
			h.mu.Unlock()
			if last != nil {
				c.Send(*last)
			}
			h.log.Debug("client registered", logger.Fields("client_id", c.id, "total_clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				c.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.Fields("client_id", c.id, "total_clients", total))

		case e := <-h.broadcast:
			h.mu.Lock()
			h.last = &e
			for _, c := range h.clients {
				if c.Send(e) {
					h.log.Warn("client buffer full, purged oldest event", logger.Fields("client_id", c.id))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop makes Run return. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Done is closed once Stop was called.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

// Register adds a client. It returns false if the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its event channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues e for every client. It never blocks once the hub is
// stopped.
func (h *Hub) Broadcast(e Event) {
	select {
	case h.broadcast <- e:
	case <-h.done:
	}
}

// Last returns the most recently broadcast event.
func (h *Hub) Last() (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return Event{}, false
	}
	return *h.last, true
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var _ Broadcaster = (*Hub)(nil)
