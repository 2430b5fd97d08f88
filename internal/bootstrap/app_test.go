package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"filing-backend/internal/shared/config"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:           "dev",
		LocalStoreDir: t.TempDir(),
	}
}

func TestBuildDevUsesInMemoryFallbacks(t *testing.T) {
	app, err := Build(context.Background(), devConfig(t), RoleAPI)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	if app.DB != nil {
		t.Fatalf("expected no database in dev without DATABASE_URL")
	}
	if app.Router == nil || app.DocumentsRepo == nil || app.LogsRepo == nil {
		t.Fatalf("expected router and repos to be wired")
	}
	if app.Runner != nil || app.Drive != nil {
		t.Fatalf("expected runner disabled without Zoho credentials")
	}
	if app.Presigner != nil {
		t.Fatalf("local store should not presign")
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", resp.Code)
	}
}

func TestBuildWiresRunnerWithZohoCredentials(t *testing.T) {
	cfg := devConfig(t)
	cfg.Zoho = config.ZohoConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		WorkDriveURL: "http://127.0.0.1:1/workdrive",
		CRMURL:       "http://127.0.0.1:1",
	}

	app, err := Build(context.Background(), cfg, RoleWorker)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()
	if app.Runner == nil || app.Drive == nil {
		t.Fatalf("expected runner and drive client")
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	if _, err := Build(context.Background(), cfg, RoleAPI); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}
