package transcription

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/kbukum/speechgate/scheduler"
)

// EventType is the "type" tag of a streaming event.
type EventType string

const (
	EventDelta EventType = "transcript.text.delta"
	EventDone  EventType = "transcript.text.done"
)

// Event is one unit of a streaming response: a Delta carrying a partial
// transcript or the terminal Done carrying the full text.
type Event struct {
	Type  EventType
	Delta string
	Text  string
}

// Delta returns a partial-transcript event.
func Delta(text string) Event { return Event{Type: EventDelta, Delta: text} }

// Done returns the terminal event.
func Done(text string) Event { return Event{Type: EventDone, Text: text} }

// IsDone reports whether e ends the stream.
func (e Event) IsDone() bool { return e.Type == EventDone }

type deltaWire struct {
	Type  EventType `json:"type"`
	Delta string    `json:"delta"`
}

type doneWire struct {
	Type EventType `json:"type"`
	Text string    `json:"text"`
}

// MarshalJSON encodes a Delta as {"type","delta"} and a Done as {"type","text"}.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.IsDone() {
		return json.Marshal(doneWire{Type: EventDone, Text: e.Text})
	}
	return json.Marshal(deltaWire{Type: EventDelta, Delta: e.Delta})
}

// UnmarshalJSON decodes either wire shape.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type  EventType `json:"type"`
		Delta string    `json:"delta"`
		Text  string    `json:"text"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = Event(wire)
	return nil
}

// StreamWriter emits Delta events for a request and closes the stream with
// a single Done carrying the concatenated deltas.
type StreamWriter struct {
	out  scheduler.Sink[Response]
	text strings.Builder
	done bool
}

// NewStreamWriter wraps a handler's sink.
func NewStreamWriter(out scheduler.Sink[Response]) *StreamWriter {
	return &StreamWriter{out: out}
}

// Delta sends a partial transcript. It returns false once the stream is
// done or the caller went away.
func (w *StreamWriter) Delta(text string) bool {
	if w.done {
		return false
	}
	w.text.WriteString(text)
	return w.out.Send(Delta(text))
}

// Done sends the terminal event. Only the first call sends.
func (w *StreamWriter) Done() bool {
	if w.done {
		return false
	}
	w.done = true
	return w.out.Send(Done(w.text.String()))
}

// Text returns the deltas written so far.
func (w *StreamWriter) Text() string { return w.text.String() }

// Finished reports whether Done was sent.
func (w *StreamWriter) Finished() bool { return w.done }

// streamSink sits between a handler and the reply of a streaming request.
// Whole responses become a Delta, a handler Done is forwarded once, and
// anything sent after Done is dropped.
type streamSink struct {
	mu sync.Mutex
	w  *StreamWriter
}

func (s *streamSink) Send(r Response) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w.done {
		return false
	}
	switch v := r.(type) {
	case Event:
		if v.IsDone() {
			s.w.done = true
			return s.w.out.Send(v)
		}
		return s.w.Delta(v.Delta)
	default:
		return s.w.Delta(TextOf(r))
	}
}

func (s *streamSink) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Done()
}

// StreamMiddleware guarantees that a streaming request produces ordered
// events ending in exactly one Done. If the handler returns without sending
// Done, one is appended carrying the accumulated text. A failing handler
// gets no Done; its error terminates the stream instead. Non-streaming
// requests pass through untouched.
func StreamMiddleware() scheduler.Middleware[Request, Response] {
	return func(next Handler) Handler {
		return scheduler.HandlerFunc[Request, Response](func(ctx context.Context, req Request, out scheduler.Sink[Response]) error {
			if !req.Stream() {
				return next.Handle(ctx, req, out)
			}
			sink := &streamSink{w: NewStreamWriter(out)}
			if err := next.Handle(ctx, req, sink); err != nil {
				return err
			}
			sink.finish()
			return nil
		})
	}
}

// TextOf returns the transcript carried by r.
func TextOf(r Response) string {
	switch v := r.(type) {
	case Transcription:
		return v.Text
	case Text:
		return string(v)
	case VerboseTranscription:
		return v.Text
	case Event:
		if v.IsDone() {
			return v.Text
		}
		return v.Delta
	default:
		return ""
	}
}
