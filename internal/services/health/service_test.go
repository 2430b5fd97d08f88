package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusAggregatesChecks(t *testing.T) {
	svc := NewService()
	if body, ok := svc.Status(context.Background()); !ok || body["ok"] != true {
		t.Fatalf("expected healthy with no checks, got %v", body)
	}

	svc.Add("database", func(context.Context) error { return nil })
	svc.Add("redis", func(context.Context) error { return errors.New("connection refused") })
	svc.Add("ignored", nil)

	body, ok := svc.Status(context.Background())
	if ok {
		t.Fatalf("expected unhealthy")
	}
	checks := body["checks"].(map[string]string)
	if checks["database"] != "ok" || checks["redis"] != "connection refused" {
		t.Fatalf("unexpected checks %v", checks)
	}
	if _, found := checks["ignored"]; found {
		t.Fatalf("nil check should not be registered")
	}
}
