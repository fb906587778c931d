// Package llm talks to the inference endpoint.
package llm

import "context"

// Request is a single generation request.
type Request struct {
	Model  string
	System string
	Prompt string
}

// Client defines the interface for LLM clients.
type Client interface {
	// Generate sends one request and returns the full generated text.
	// Failures are reported as *ConnectionError or *MalformedResponseError.
	Generate(ctx context.Context, req Request) (string, error)
}
