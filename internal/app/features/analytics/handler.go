// Package analytics provides the dashboard analytics API.
//
// Endpoints (mounted at /api/analytics):
//   - GET  /dashboard?year=&month=&day= - dashboard view model for a filter
//   - GET  /days?year=&month=           - day options for a year and month
//   - GET  /palette                     - status color palette
//   - GET  /live                        - WebSocket with pushed view models
//   - POST /events                      - record lead counter events
//
// All endpoints require API key authentication. The WebSocket also accepts
// the key as an access_token query parameter.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	leadstatsstore "github.com/dalemusser/stratalead/internal/app/store/leadstats"
	"github.com/dalemusser/stratalead/internal/app/system/apicors"
	"github.com/dalemusser/stratalead/internal/app/system/jsonutil"
	"github.com/dalemusser/stratalead/internal/app/system/statsclient"
	"github.com/dalemusser/stratalead/internal/app/system/statsfetch"
	"github.com/dalemusser/stratalead/internal/app/system/timeouts"
	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventRecorder is the write side of the counter store.
type EventRecorder interface {
	RecordLead(ctx context.Context, createdAt time.Time, status string) error
	RecordStatusChange(ctx context.Context, createdAt time.Time, from, to string) error
	Increment(ctx context.Context, at time.Time, counter string, delta int64) error
}

// Invalidator drops cached payloads after a write.
type Invalidator interface {
	Invalidate()
}

// Config holds the handler's dependencies. Recorder and Invalidator are
// optional: without a recorder the events endpoint reports 501.
type Config struct {
	Provider    statsfetch.Provider
	LabelPolicy analytics.LabelPolicy
	Recorder    EventRecorder
	Invalidator Invalidator
	Origins     apicors.Origins // browser origins allowed on the live socket
	Logger      *zap.Logger
}

// Handler serves the analytics API.
type Handler struct {
	provider    statsfetch.Provider
	policy      analytics.LabelPolicy
	recorder    EventRecorder
	invalidator Invalidator
	hub         *Hub
	upgrader    *websocket.Upgrader
	logger      *zap.Logger
}

// NewHandler creates a new analytics Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		provider:    cfg.Provider,
		policy:      cfg.LabelPolicy,
		recorder:    cfg.Recorder,
		invalidator: cfg.Invalidator,
		hub:         NewHub(logger),
		upgrader:    newUpgrader(cfg.Origins),
		logger:      logger,
	}
}

// Hub returns the registry of live dashboard sessions.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// parseFilter reads year, month and day query parameters.
func parseFilter(r *http.Request) (analytics.TimeFilter, error) {
	q := r.URL.Query()
	parts := make([]*int, 3)
	for i, name := range []string{"year", "month", "day"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return analytics.TimeFilter{}, fmt.Errorf("%w: %s %q is not a number", analytics.ErrInvalidFilterTransition, name, raw)
		}
		parts[i] = &n
	}
	return analytics.NewTimeFilter(parts[0], parts[1], parts[2])
}

// fetchStatus maps a provider error to an HTTP status.
func fetchStatus(err error) int {
	switch {
	case errors.Is(err, statsclient.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Dashboard handles GET /dashboard.
//
// Response (200 OK): a DashboardViewModel. Points whose bucket keys could
// not be labelled are reported in labelIssues.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		jsonutil.BadRequest(w, "invalid filter: "+err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.logger, "analytics dashboard")
	defer cancel()

	payload, err := h.provider.Fetch(ctx, filter)
	if err != nil {
		h.logger.Warn("dashboard stats fetch failed",
			zap.String("filter", filter.Key()),
			zap.Error(err))
		jsonutil.Error(w, fetchStatus(err), "stats unavailable")
		return
	}

	vm, labelErr := analytics.BuildViewModel(filter, payload, h.policy)
	if labelErr != nil {
		h.logger.Warn("dashboard stats contain unparseable bucket keys",
			zap.String("filter", filter.Key()),
			zap.Error(labelErr))
	}
	jsonutil.OK(w, vm)
}

// Days handles GET /days.
//
// Response (200 OK): {"days": [1, 2, ..., N]}
func (h *Handler) Days(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		jsonutil.BadRequest(w, "invalid filter: "+err.Error())
		return
	}
	days, err := analytics.DayOptions(filter)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	jsonutil.OK(w, map[string]any{"days": days})
}

// Palette handles GET /palette.
func (h *Handler) Palette(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, map[string]any{"palette": analytics.Palette()})
}

// Event types accepted by the events endpoint.
const (
	EventLeadCreated       = "lead_created"
	EventLeadStatusChanged = "lead_status_changed"
	EventCounter           = "counter"
)

// eventInput is the body of POST /events.
type eventInput struct {
	Type    string    `json:"type"`
	At      time.Time `json:"at"` // lead creation time, or event time for counters
	Status  string    `json:"status,omitempty"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	Counter string    `json:"counter,omitempty"`
	Delta   int64     `json:"delta,omitempty"`
}

// Events handles POST /events.
//
// Request body, one of:
//
//	{"type": "lead_created", "at": "2025-03-07T09:42:00Z", "status": "NEW"}
//	{"type": "lead_status_changed", "at": "2025-03-07T09:42:00Z", "from": "NEW", "to": "CONTACTED"}
//	{"type": "counter", "at": "2025-03-07T09:42:00Z", "counter": "jobs", "delta": 1}
//
// Status changes are recorded against the lead's creation time so every
// scope keeps the same population. Response: 202 Accepted.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		jsonutil.Error(w, http.StatusNotImplemented, "event ingest requires the mongo stats source")
		return
	}

	var in eventInput
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}
	if in.At.IsZero() {
		in.At = time.Now().UTC()
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "analytics event")
	defer cancel()

	var err error
	switch in.Type {
	case EventLeadCreated:
		err = h.recorder.RecordLead(ctx, in.At, in.Status)
	case EventLeadStatusChanged:
		if in.From == "" || in.To == "" {
			jsonutil.ValidationError(w, map[string]string{"from": "required", "to": "required"})
			return
		}
		err = h.recorder.RecordStatusChange(ctx, in.At, in.From, in.To)
	case EventCounter:
		if in.Counter == "" {
			jsonutil.ValidationError(w, map[string]string{"counter": "required"})
			return
		}
		if in.Delta == 0 {
			in.Delta = 1
		}
		err = h.recorder.Increment(ctx, in.At, in.Counter, in.Delta)
	default:
		jsonutil.BadRequest(w, fmt.Sprintf("unknown event type %q", in.Type))
		return
	}
	if errors.Is(err, leadstatsstore.ErrInvalidName) {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to record analytics event",
			zap.String("type", in.Type),
			zap.Error(err))
		jsonutil.InternalError(w, "failed to record event")
		return
	}

	if h.invalidator != nil {
		h.invalidator.Invalidate()
	}
	h.hub.RefreshAll()

	jsonutil.JSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}
