// Package auth provides API key authentication for the analytics API.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dalemusser/stratalead/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// QueryTokenParam is the query parameter checked when no Authorization
// header is present. Browsers cannot set headers on a WebSocket handshake.
const QueryTokenParam = "access_token"

// APIKeyAuth returns middleware that validates API key authentication.
//
// The key is read from "Authorization: Bearer <api-key>" or, failing that,
// from the access_token query parameter.
//
// Usage in routes.go:
//
//	r.Use(apicors.Middleware(origins))
//	r.Use(auth.APIKeyAuth(appCfg.APIKey, logger))
//
// If the API key is invalid or missing, returns 401 Unauthorized.
// If the API key is not configured (empty), logs a warning and rejects all requests.
func APIKeyAuth(validKey string, logger *zap.Logger) func(http.Handler) http.Handler {
	if validKey == "" {
		logger.Warn("API key not configured - all API requests will be rejected")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validKey == "" {
				logger.Warn("API request rejected: API key not configured",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				jsonutil.Unauthorized(w, "API authentication not configured")
				return
			}

			providedKey, ok := extractKey(r)
			if !ok {
				logger.Debug("API request rejected: missing or malformed credentials",
					zap.String("path", r.URL.Path),
				)
				jsonutil.Unauthorized(w, "missing or invalid Authorization (expected: Bearer <api-key>)")
				return
			}

			if subtle.ConstantTimeCompare([]byte(providedKey), []byte(validKey)) != 1 {
				logger.Warn("API request rejected: invalid API key",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				jsonutil.Unauthorized(w, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractKey returns the presented key and whether one was well formed.
func extractKey(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if key := r.URL.Query().Get(QueryTokenParam); key != "" {
		return key, true
	}
	return "", false
}
