package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"filing-backend/internal/shared/telemetry"
)

// ErrorClassification tells the executor how to treat a failure.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

// ErrorClassifier maps an error to its classification.
type ErrorClassifier func(err error) ErrorClassification

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// Executor runs outbound calls with per-attempt timeouts, bounded retries and a
// circuit breaker per operation name.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewExecutor builds an Executor from cfg.
func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Do calls fn under policy, classifying failures with Classify.
func (e *Executor) Do(ctx context.Context, operation string, policy Policy, fn func(context.Context) error) error {
	return e.Execute(ctx, operation, policy, fn, Classify)
}

// Execute calls fn under policy with a custom classifier.
func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	policy Policy,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = Classify
	}
	if e == nil {
		return runAttempt(ctx, policy.Timeout, fn)
	}

	if !e.cfg.BreakerEnabled {
		return e.executeWithRetry(ctx, op, policy, fn, classifier)
	}

	breaker := e.circuitBreaker(op, classifier)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, op, policy, fn, classifier)
	})
	if IsCircuitOpen(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return err
}

func (e *Executor) executeWithRetry(
	ctx context.Context,
	operation string,
	policy Policy,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	maxAttempts := 1
	if policy.Retry {
		maxAttempts = e.cfg.RetryMaxAttempts
	}
	backoff := e.cfg.RetryInitialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := runAttempt(ctx, policy.Timeout, fn)
		if err == nil {
			return nil
		}

		class := classifier(err)
		if !class.Retryable || attempt == maxAttempts {
			return err
		}

		wait := backoff
		if wait > e.cfg.RetryMaxBackoff {
			wait = e.cfg.RetryMaxBackoff
		}
		telemetry.Warn("resilience.retry", map[string]any{
			"operation":    operation,
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"backoff_ms":   float64(wait.Microseconds()) / 1000.0,
			"error":        err.Error(),
		})

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}

		backoff = time.Duration(float64(backoff) * e.cfg.RetryMultiplier)
		if backoff > e.cfg.RetryMaxBackoff {
			backoff = e.cfg.RetryMaxBackoff
		}
	}

	return nil
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(attemptCtx)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", timeout, errors.Join(context.DeadlineExceeded, err))
	}
	return err
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			telemetry.Warn("resilience.breaker_state_change", map[string]any{
				"operation": name,
				"from":      from.String(),
				"to":        to.String(),
			})
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

// IsCircuitOpen reports whether err was produced by an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Classify is the default classifier: timeouts, network errors, 429 and 5xx
// are transient; other upstream 4xx responses neither retry nor trip the breaker.
func Classify(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var coder StatusCoder
	if errors.As(err, &coder) {
		status := coder.HTTPStatus()
		if status == 429 || status >= 500 {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}
