package provider

import "context"

// Provider is implemented by every transcription backend.
type Provider interface {
	// Name returns the name the backend is registered under.
	Name() string
	// Ping reports why the backend cannot take work, or nil when it can.
	Ping(ctx context.Context) error
}

// Factory builds a backend from its `transcription.backends.<name>` map.
type Factory[T Provider] func(cfg map[string]any) (T, error)
