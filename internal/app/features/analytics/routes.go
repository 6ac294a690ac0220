package analytics

import (
	"net/http"
	"time"

	"github.com/dalemusser/stratalead/internal/app/system/apicors"
	"github.com/dalemusser/stratalead/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Routes returns a router with the analytics API endpoints.
//
// When mounted at /api/analytics:
//   - GET  /api/analytics/dashboard
//   - GET  /api/analytics/days
//   - GET  /api/analytics/palette
//   - GET  /api/analytics/live
//   - POST /api/analytics/events
//
// Authentication is via API key. The request timeout applies to every
// route except the long-lived WebSocket.
func Routes(h *Handler, origins apicors.Origins, apiKey string, requestTimeout time.Duration, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(apicors.Middleware(origins))
	r.Use(auth.APIKeyAuth(apiKey, logger))

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Get("/dashboard", h.Dashboard)
		r.Get("/days", h.Days)
		r.Get("/palette", h.Palette)
		r.Post("/events", h.Events)
	})

	r.Get("/live", h.Live)

	return r
}
