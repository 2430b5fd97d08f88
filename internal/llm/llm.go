package llm

import (
	"context"
	"errors"
)

// Completer abstracts chat-completion providers.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is a single system+user exchange.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	// JSON asks the provider for a JSON object response when supported.
	JSON bool
}

// Response carries the raw assistant text and token accounting.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Usage reports token counts when the provider returns them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ErrNotConfigured is returned by the placeholder completer.
var ErrNotConfigured = errors.New("LLM provider not configured")

// PlaceholderCompleter stands in when no provider is configured.
type PlaceholderCompleter struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	_ = ctx
	_ = req
	return Response{}, ErrNotConfigured
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (Response, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
