package llm

import (
	"context"
	"time"
)

// Request is one schema-constrained completion call.
type Request struct {
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

// Usage reports token counts for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is the raw model output plus accounting data.
type Completion struct {
	Content string
	Model   string
	Usage   Usage
	Latency time.Duration
}

// Completer sends one request to a model and returns its raw JSON text.
// Implementations do not interpret the content.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
	Model() string
}
