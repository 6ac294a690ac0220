// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	analyticsfeature "github.com/dalemusser/stratalead/internal/app/features/analytics"
	healthfeature "github.com/dalemusser/stratalead/internal/app/features/health"
	"github.com/dalemusser/stratalead/internal/app/system/apicors"
	"github.com/dalemusser/stratalead/internal/app/system/jsonutil"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// Routes:
//   - /health, /ready, /readyz, /livez: probes (no auth)
//   - /api/analytics/*: dashboard API and live socket (API key auth)
//
// The request timeout is applied inside the analytics router so that the
// live WebSocket is not cut off. The analytics router also sets its own
// CORS headers, so the core CORS middleware is not applied to it.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	origins := apicors.ParseOrigins(appCfg.AnalyticsOrigins)

	analyticsCfg := analyticsfeature.Config{
		Provider:    deps.Provider,
		LabelPolicy: appCfg.labelPolicy(),
		Origins:     origins,
		Logger:      logger,
	}
	// Interface fields stay nil unless the backing value exists.
	if deps.LeadStats != nil {
		analyticsCfg.Recorder = deps.LeadStats
	}
	if deps.StatsCache != nil {
		analyticsCfg.Invalidator = deps.StatsCache
	}
	analyticsHandler := analyticsfeature.NewHandler(analyticsCfg)

	healthCfg := healthfeature.Config{
		MongoClient:  deps.MongoClient,
		LiveSessions: analyticsHandler.Hub(),
		Logger:       logger,
	}
	if deps.StatsClient != nil {
		healthCfg.StatsBackend = deps.StatsClient
	}
	healthHandler := healthfeature.NewHandler(healthCfg)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Health check endpoints for load balancers and orchestrators.
	// Core CORS config covers these only.
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORSFromConfig(coreCfg))
		r.Mount("/health", healthfeature.Routes(healthHandler))
		healthfeature.MountRootEndpoints(r, healthHandler)
	})

	// Dashboard analytics API. CORS here comes from analytics_origins alone.
	r.Mount("/api/analytics", analyticsfeature.Routes(analyticsHandler, origins, appCfg.APIKey, appCfg.RequestTimeout, logger))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		jsonutil.Error(w, http.StatusNotFound, "not found")
	})

	logger.Info("routes mounted",
		zap.String("stats_source", appCfg.StatsSource),
		zap.Int("analytics_origins", len(origins)),
		zap.Bool("event_ingest", analyticsCfg.Recorder != nil),
	)

	return r, nil
}
