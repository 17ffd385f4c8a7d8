// Package provider defines the narrow inference interface chatwindow talks to
// and adapts it to the context manager.
package provider

import "context"

// Provider is a chat completion backend.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Models lists the models the backend can serve.
	Models(ctx context.Context) ([]string, error)

	// Chat sends a non-streaming request and returns the full response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Stream sends a request and returns a channel of events. The channel is
	// closed after a done or error event, or when ctx is cancelled.
	Stream(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
}
