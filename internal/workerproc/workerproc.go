// Package workerproc drives the filing runner from a schedule and from
// wake-up queue messages.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"filing-backend/internal/pipeline"
	"filing-backend/internal/queue"
	"filing-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrUnsupportedVersion indicates a message from a newer producer.
type ErrUnsupportedVersion struct {
	Meta    MessageMeta
	Version int
}

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported message version %d", e.Version)
}

// ParseMessage validates and decodes the queue payload. Version 0 is
// accepted as the first schema.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if msg.Version > queue.MessageVersion {
		return msg, meta, ErrUnsupportedVersion{Meta: meta, Version: msg.Version}
	}
	return msg, meta, nil
}

// Runner is the filing job.
type Runner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// Loop runs the job once at start, then on every Interval tick and every
// wake signal. Wake signals arriving during a run collapse into one rerun.
type Loop struct {
	Runner   Runner
	Interval time.Duration
	wake     chan struct{}
}

// NewLoop builds a Loop.
func NewLoop(runner Runner, interval time.Duration) *Loop {
	return &Loop{Runner: runner, Interval: interval, wake: make(chan struct{}, 1)}
}

// Wake requests a run as soon as the current one (if any) finishes.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Start blocks until ctx is cancelled. A run in progress is never
// interrupted by cancellation; Start returns once it has finished.
func (l *Loop) Start(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)
	l.runOnce(runCtx, "start")

	var tick <-chan time.Time
	if l.Interval > 0 {
		ticker := time.NewTicker(l.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			l.runOnce(runCtx, "interval")
		case <-l.wake:
			l.runOnce(runCtx, "wake")
		}
	}
}

func (l *Loop) runOnce(ctx context.Context, trigger string) {
	summary, err := l.Runner.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		telemetry.Info("worker.run.locked", map[string]any{"trigger": trigger})
	case err != nil:
		telemetry.Error("worker.run.failed", map[string]any{
			"trigger":   trigger,
			"error":     err.Error(),
			"claimed":   summary.Claimed,
			"completed": summary.Completed,
			"failed":    summary.Failed,
		})
	default:
		telemetry.Debug("worker.run.done", map[string]any{
			"trigger": trigger,
			"claimed": summary.Claimed,
		})
	}
}
