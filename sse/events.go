package sse

import (
	"bytes"
	"fmt"
	"io"
)

// Event is one server-sent event. An empty Name omits the "event:" line,
// so browsers deliver it as a plain "message".
type Event struct {
	Name string
	Data []byte
}

// Encode writes e in wire format. Multi-line data is split into several
// "data:" lines as the SSE framing requires.
func Encode(w io.Writer, e Event) error {
	var buf bytes.Buffer
	if e.Name != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.Name)
	}
	for _, line := range bytes.Split(e.Data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

// Broadcaster delivers events to every connected client.
type Broadcaster interface {
	Broadcast(e Event)
}
