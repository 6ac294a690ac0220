package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestAPIKeyAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		validKey string
		header   string
		target   string
		want     int
	}{
		{"valid bearer", "k3y", "Bearer k3y", "/api/analytics/dashboard", http.StatusOK},
		{"case-insensitive scheme", "k3y", "bearer k3y", "/api/analytics/dashboard", http.StatusOK},
		{"wrong key", "k3y", "Bearer nope", "/api/analytics/dashboard", http.StatusUnauthorized},
		{"wrong scheme", "k3y", "Basic k3y", "/api/analytics/dashboard", http.StatusUnauthorized},
		{"missing", "k3y", "", "/api/analytics/dashboard", http.StatusUnauthorized},
		{"query token", "k3y", "", "/api/analytics/live?access_token=k3y", http.StatusOK},
		{"bad query token", "k3y", "", "/api/analytics/live?access_token=nope", http.StatusUnauthorized},
		{"header wins over query", "k3y", "Bearer nope", "/api/analytics/live?access_token=k3y", http.StatusUnauthorized},
		{"not configured", "", "Bearer anything", "/api/analytics/dashboard", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			APIKeyAuth(tt.validKey, zap.NewNop())(next).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
