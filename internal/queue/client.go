package queue

import (
	"context"
	"fmt"
	"time"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Publisher turns wake reasons into queue messages.
type Publisher struct {
	client Client
	now    func() time.Time
}

// NewPublisher wraps client.
func NewPublisher(client Client) *Publisher {
	return &Publisher{client: client, now: time.Now}
}

// Notify sends a wake message for reason.
func (p *Publisher) Notify(ctx context.Context, reason string) error {
	msg := NewMessage(reason, RequestIDFromContext(ctx), p.now())
	if err := p.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("publish wake message: %w", err)
	}
	return nil
}

type requestIDKey struct{}

// WithRequestID stores the inbound request id so wake messages can carry it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
