package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"filing-backend/internal/llm"
	"filing-backend/internal/shared/telemetry"
)

// Options configures the OpenAI-compatible client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Client implements llm.Completer using Chat Completions.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient constructs a new OpenAI client. BaseURL may point at any
// OpenAI-compatible endpoint.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: strings.TrimSpace(opts.Model),
	}, nil
}

// APIError carries the HTTP status of a failed completion call.
type APIError struct {
	Status int
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai status %d: %v", e.Status, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus lets retry classification see the provider status.
func (e *APIError) HTTPStatus() int { return e.Status }

// Complete sends a single system+user exchange and returns the first choice.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	chatReq := buildRequest(c.model, req)

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return llm.Response{}, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("openai response missing choices")
	}

	out := llm.Response{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	telemetry.Info("llm.response", map[string]any{
		"model":             c.model,
		"prompt_tokens":     out.Usage.PromptTokens,
		"completion_tokens": out.Usage.CompletionTokens,
		"total_tokens":      out.Usage.TotalTokens,
	})
	return out, nil
}

func buildRequest(model string, req llm.Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	out := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	// gpt-5 models reject custom temperature and max_tokens.
	if isGPT5(model) {
		out.MaxCompletionTokens = req.MaxTokens
	} else {
		out.MaxTokens = req.MaxTokens
		out.Temperature = req.Temperature
	}
	if req.JSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return out
}

func wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &APIError{Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &APIError{Status: reqErr.HTTPStatusCode, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return fmt.Errorf("openai request timeout: %w", err)
	}
	return err
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ llm.Completer = (*Client)(nil)
