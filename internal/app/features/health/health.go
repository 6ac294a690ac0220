// internal/app/features/health/health.go
package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/stratalead/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// BreakerReporter exposes a circuit breaker state ("closed", "half-open", "open").
type BreakerReporter interface {
	BreakerState() string
}

// SessionCounter reports the number of open live dashboard sessions.
type SessionCounter interface {
	Len() int
}

// Config holds the dependencies probed by the health endpoints. Any of them
// may be nil: the Mongo client is absent when stats come from a remote
// backend, the breaker when they come from Mongo.
type Config struct {
	MongoClient  *mongo.Client
	StatsBackend BreakerReporter
	LiveSessions SessionCounter
	Logger       *zap.Logger
}

// Handler provides health check endpoints.
type Handler struct {
	mongoClient *mongo.Client
	backend     BreakerReporter
	sessions    SessionCounter
	logger      *zap.Logger
}

// NewHandler creates a new health check Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		mongoClient: cfg.MongoClient,
		backend:     cfg.StatsBackend,
		sessions:    cfg.LiveSessions,
		logger:      logger,
	}
}

// Response represents the health check response.
type Response struct {
	Status       string            `json:"status"`
	Services     map[string]string `json:"services,omitempty"`
	LiveSessions *int              `json:"live_sessions,omitempty"`
}

// Routes returns a chi.Router with health check routes mounted.
// Provides /health (full check), /health/ready, and /health/live.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds /ready, /readyz and /livez directly on the root
// router for Kubernetes probes.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/ready", h.Ready)
	r.Get("/readyz", h.Ready)
	r.Get("/livez", h.Live)
}

// statsReady reports whether the configured stats source can serve reads.
func (h *Handler) statsReady(ctx context.Context) (map[string]string, bool) {
	services := make(map[string]string)
	ok := true

	if h.mongoClient != nil {
		if err := h.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
			ok = false
			services["mongodb"] = "unavailable"
			h.logger.Warn("health check: mongodb ping failed", zap.Error(err))
		} else {
			services["mongodb"] = "ok"
		}
	}

	if h.backend != nil {
		state := h.backend.BreakerState()
		services["stats_backend"] = state
		if state == "open" {
			ok = false
		}
	}
	return services, ok
}

// Check performs a full health check of the stats source.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	services, ok := h.statsReady(ctx)
	resp := Response{Status: "ok", Services: services}
	if !ok {
		resp.Status = "degraded"
	}
	if h.sessions != nil {
		n := h.sessions.Len()
		resp.LiveSessions = &n
	}

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}

// Ready checks if the service is ready to accept requests.
// Used by Kubernetes readiness probes.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if _, ok := h.statsReady(ctx); !ok {
		h.logger.Warn("readiness check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.Write([]byte(`{"status":"ready"}`))
}

// Live checks if the service is alive.
// Used by Kubernetes liveness probes.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"alive"}`))
}
