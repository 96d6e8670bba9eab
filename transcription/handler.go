package transcription

import (
	"fmt"

	"github.com/kbukum/speechgate/provider"
	"github.com/kbukum/speechgate/scheduler"
)

// Handler performs inference for one transcription request.
type Handler = scheduler.Handler[Request, Response]

// Sink receives a handler's responses.
type Sink = scheduler.Sink[Response]

// HandlerFunc adapts a function to Handler.
type HandlerFunc = scheduler.HandlerFunc[Request, Response]

// Scheduler is the scheduler specialized for transcription.
type Scheduler = scheduler.Scheduler[Request, Response]

// Backend is a named inference handler that can report its availability.
type Backend interface {
	provider.Provider
	Handler
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *provider.Registry[Backend] {
	return provider.NewRegistry[Backend]()
}

// HandlerFactory returns a scheduler.HandlerFactory that builds a fresh
// backend per worker from the named factory, since backends are not
// assumed safe for concurrent use.
func HandlerFactory(reg *provider.Registry[Backend], name string, cfg map[string]any) scheduler.HandlerFactory[Request, Response] {
	return func(worker int) (Handler, error) {
		b, err := reg.Create(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", worker, err)
		}
		if worker == 0 {
			reg.Set(name, b)
		}
		return b, nil
	}
}
