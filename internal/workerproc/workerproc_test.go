package workerproc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"filing-backend/internal/pipeline"
	"filing-backend/internal/queue"
)

func TestParseMessage(t *testing.T) {
	payload, _ := queue.EncodeMessage(queue.NewMessage("document.created", "req-1", time.Now()))

	msg, meta, err := ParseMessage(string(payload))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Reason != "document.created" || meta.BodyLen != len(payload) || meta.BodySHA == "" {
		t.Fatalf("unexpected parse %+v %+v", msg, meta)
	}

	if _, _, err := ParseMessage("  "); !errors.As(err, &ErrEmptyBody{}) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	if _, _, err := ParseMessage("{not json"); !errors.As(err, &ErrDecode{}) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, _, err := ParseMessage(`{"reason":"x","version":99}`); !errors.As(err, &ErrUnsupportedVersion{}) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
	if _, _, err := ParseMessage(`{"reason":"legacy"}`); err != nil {
		t.Fatalf("expected versionless message to parse, got %v", err)
	}
}

type countingRunner struct {
	mu    sync.Mutex
	runs  int
	err   error
	ran   chan struct{}
	block chan struct{}
}

func (r *countingRunner) Run(ctx context.Context) (pipeline.Summary, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	if r.ran != nil {
		r.ran <- struct{}{}
	}
	return pipeline.Summary{}, r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func waitRun(t *testing.T, ran <-chan struct{}) {
	t.Helper()
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a run")
	}
}

func TestLoopRunsAtStartAndOnWake(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 4), err: pipeline.ErrRunInProgress}
	loop := NewLoop(runner, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Start(ctx)
		close(done)
	}()

	waitRun(t, runner.ran)
	loop.Wake()
	waitRun(t, runner.ran)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}
	if got := runner.count(); got != 2 {
		t.Fatalf("expected 2 runs, got %d", got)
	}
}

func TestLoopRunsOnInterval(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 8)}
	loop := NewLoop(runner, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Start(ctx)

	for i := 0; i < 3; i++ {
		waitRun(t, runner.ran)
	}
}

func TestWakeCoalesces(t *testing.T) {
	loop := NewLoop(&countingRunner{}, 0)
	loop.Wake()
	loop.Wake()
	loop.Wake()
	if len(loop.wake) != 1 {
		t.Fatalf("expected wake signals to coalesce, got %d pending", len(loop.wake))
	}
}

func TestLoopFinishesRunAfterCancel(t *testing.T) {
	runner := &countingRunner{ran: make(chan struct{}, 1), block: make(chan struct{})}
	loop := NewLoop(runner, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Start(ctx)
		close(done)
	}()

	cancel()
	close(runner.block)
	waitRun(t, runner.ran)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}
	if runner.count() != 1 {
		t.Fatalf("expected the in-flight run to finish")
	}
}
