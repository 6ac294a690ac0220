package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/stratalead/internal/app/system/statsfetch"
	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	coreCfg := &config.CoreConfig{}
	coreCfg.CORS.EnableCORS = true
	coreCfg.CORS.CORSAllowedOrigins = []string{"https://ops.example.com"}
	coreCfg.CORS.CORSAllowedMethods = []string{"GET", "OPTIONS"}

	appCfg := validMongoConfig()
	appCfg.APIKey = "secret"
	appCfg.AnalyticsOrigins = "https://admin.example.com"

	provider := statsfetch.ProviderFunc(func(ctx context.Context, f analytics.TimeFilter) (analytics.RawStatsPayload, error) {
		return analytics.RawStatsPayload{}, nil
	})
	h, err := BuildHandler(coreCfg, appCfg, DBDeps{Provider: provider}, zap.NewNop())
	if err != nil {
		t.Fatalf("BuildHandler() error = %v", err)
	}
	return h
}

func preflight(h http.Handler, path, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, path, nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildHandler_AnalyticsCORS(t *testing.T) {
	h := testRouter(t)

	rec := preflight(h, "/api/analytics/dashboard", "https://admin.example.com")
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	got := rec.Header().Values("Access-Control-Allow-Origin")
	if len(got) != 1 || got[0] != "https://admin.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want only the analytics origin", got)
	}

	// Origins from the core CORS list do not open the analytics API.
	rec = preflight(h, "/api/analytics/dashboard", "https://ops.example.com")
	if got := rec.Header().Values("Access-Control-Allow-Origin"); len(got) != 0 {
		t.Errorf("Access-Control-Allow-Origin for core origin = %q, want none", got)
	}
}

func TestBuildHandler_HealthUsesCoreCORS(t *testing.T) {
	h := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the core origin", got)
	}
}
