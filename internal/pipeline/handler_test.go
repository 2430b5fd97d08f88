package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type notifierFunc func(ctx context.Context, reason string) error

func (f notifierFunc) Notify(ctx context.Context, reason string) error { return f(ctx, reason) }

func serveTrigger(t *testing.T, n Notifier) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(n).RegisterRoutes(router.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/filing/runs", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestTriggerQueuesRun(t *testing.T) {
	var reasons []string
	resp := serveTrigger(t, notifierFunc(func(_ context.Context, reason string) error {
		reasons = append(reasons, reason)
		return nil
	}))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if len(reasons) != 1 || reasons[0] != "manual" {
		t.Fatalf("unexpected notifications %v", reasons)
	}
}

func TestTriggerWithoutQueue(t *testing.T) {
	if resp := serveTrigger(t, nil); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestTriggerQueueError(t *testing.T) {
	resp := serveTrigger(t, notifierFunc(func(context.Context, string) error {
		return errors.New("throttled")
	}))
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}
