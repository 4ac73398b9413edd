package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/phdev/Final-Assignment-Template/internal/shorttermmemory"
	"github.com/phdev/Final-Assignment-Template/tool"
)

// Provider talks to a chat-completion service.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// Model names a model and the provider that serves it.
type Model interface {
	Name() string
	Provider() Provider
	Temperature() float64
}

// CompletionParams is everything a provider needs for one model call.
type CompletionParams struct {
	RunID        uuid.UUID
	Instructions string
	Thread       *shorttermmemory.Aggregator

	// Stream selects incremental chunks over a single response.
	Stream bool

	Model             Model
	Temperature       float64
	Tools             []tool.Definition
	ParallelToolCalls bool

	_ struct{}
}
