package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/speechgate/logger"
)

// DefaultKeepAlive is the comment interval that keeps idle connections open
// through proxies.
const DefaultKeepAlive = 30 * time.Second

// Stream writes events to one HTTP response, flushing after each.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStream sets the event-stream headers on w and disables its write
// deadline. It fails if w cannot flush.
func NewStream(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support flushing")
	}

	// Long-lived responses must not be cut by the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &Stream{w: w, flusher: flusher}, nil
}

// Send writes and flushes e.
func (s *Stream) Send(e Event) error {
	if err := Encode(s.w, e); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// KeepAlive writes a comment line.
func (s *Stream) KeepAlive() error {
	if _, err := fmt.Fprintf(s.w, ": keepalive %d\n\n", time.Now().Unix()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// ServeSSE subscribes the request to hub and streams events until the
// client disconnects or the hub stops.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, keepAlive time.Duration) {
	log := logger.WithComponent("sse").WithFields(logger.Fields("client_id", clientID))

	stream, err := NewStream(w)
	if err != nil {
		log.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	client := NewClient(clientID, defaultClientBuffer)
	if !hub.Register(client) {
		http.Error(w, "event hub is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	w.WriteHeader(http.StatusOK)
	stream.flusher.Flush()
	log.Debug("client connected", logger.Fields("remote_addr", r.RemoteAddr))

	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug("client disconnected", logger.Fields("reason", ctx.Err().Error()))
			return
		case e, ok := <-client.Events():
			if !ok {
				return
			}
			if err := stream.Send(e); err != nil {
				log.Debug("write failed", logger.Fields(logger.FieldError, err.Error()))
				return
			}
		case <-ticker.C:
			if err := stream.KeepAlive(); err != nil {
				return
			}
		}
	}
}
