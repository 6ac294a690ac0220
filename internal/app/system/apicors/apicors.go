// Package apicors provides CORS middleware for the analytics API, which
// authenticates with an API key rather than cookies.
//
// Without configured origins any origin may call the API; credentials are
// never allowed since the key travels in the Authorization header.
package apicors

import (
	"net/http"
	"strings"
)

// Origins is a set of allowed browser origins. An empty set allows all.
type Origins map[string]struct{}

// ParseOrigins reads a comma-separated origin list ("https://admin.example.com, https://ops.example.com").
func ParseOrigins(list string) Origins {
	set := Origins{}
	for _, o := range strings.Split(list, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return set
}

// Allows reports whether origin may call the API. Requests without an
// Origin header (non-browser clients) are always allowed.
func (s Origins) Allows(origin string) bool {
	if len(s) == 0 || origin == "" {
		return true
	}
	_, ok := s[origin]
	return ok
}

// CheckOrigin adapts Allows to the WebSocket upgrader hook.
func (s Origins) CheckOrigin(r *http.Request) bool {
	return s.Allows(r.Header.Get("Origin"))
}

// Middleware returns CORS middleware for API key authenticated endpoints.
//
// Usage in routes.go:
//
//	r.Use(apicors.Middleware(origins))
//	r.Use(auth.APIKeyAuth(appCfg.APIKey, logger))
func Middleware(origins Origins) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(origins) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && origins.Allows(origin):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			// Origins outside the set get no CORS headers; the browser blocks them.

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
