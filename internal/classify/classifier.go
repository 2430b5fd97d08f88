package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filing-backend/internal/extract"
	"filing-backend/internal/llm"
	"filing-backend/internal/shared/telemetry"
	"filing-backend/internal/shared/util"
)

// ClassificationError means the completion call itself failed.
type ClassificationError struct {
	FileName string
	Err      error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.FileName, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// Options tunes the completion request.
type Options struct {
	MaxTokens    int
	Temperature  float32
	ExcerptRunes int
}

// Classifier asks a language model where a document belongs.
type Classifier struct {
	llm    llm.Completer
	system string
	opts   Options
	now    func() time.Time
}

// New builds a Classifier over completer using taxonomy t.
func New(completer llm.Completer, t Taxonomy, opts Options) *Classifier {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if opts.Temperature < 0 {
		opts.Temperature = 0
	}
	if opts.ExcerptRunes <= 0 {
		opts.ExcerptRunes = extract.DefaultExcerptRunes
	}
	return &Classifier{
		llm:    completer,
		system: SystemPrompt(t),
		opts:   opts,
		now:    time.Now,
	}
}

// Excerpt pulls bounded text from body for the prompt. Unsupported types
// yield an empty excerpt.
func (c *Classifier) Excerpt(ctx context.Context, body []byte, contentType, fileName string) string {
	text, err := extract.Excerpt(ctx, body, contentType, fileName, c.opts.ExcerptRunes)
	if err != nil {
		if !errors.Is(err, extract.ErrUnsupported) {
			telemetry.Debug("classify.excerpt_failed", map[string]any{
				"file_name": fileName,
				"error":     err.Error(),
			})
		}
		return ""
	}
	return text
}

// Classify makes one completion call. It returns (nil, nil) when the model
// answered but its output could not be parsed.
func (c *Classifier) Classify(ctx context.Context, in Input) (*Result, error) {
	if c == nil || c.llm == nil {
		return nil, &ClassificationError{FileName: in.FileName, Err: llm.ErrNotConfigured}
	}

	resp, err := c.llm.Complete(ctx, llm.Request{
		System:      c.system,
		User:        UserPrompt(in, c.now()),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, &ClassificationError{FileName: in.FileName, Err: err}
	}

	result := Parse(resp.Text)
	if result == nil {
		telemetry.Warn("classify.unparsable", map[string]any{
			"file_name": in.FileName,
			"output":    util.Truncate(resp.Text, 200),
		})
		return nil, nil
	}
	return result, nil
}
