// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/profboard/profboard/internal/adapters/identity"
	"github.com/profboard/profboard/internal/domain/assemble"
	"github.com/profboard/profboard/pkg/metrics"
)

type ctxKey int

const (
	viewerKey ctxKey = iota
	requestIDKey
)

// ViewerFromContext returns the viewer id resolved by ViewerMiddleware.
// Anonymous requests carry assemble.AnonymousViewer.
func ViewerFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(viewerKey).(int64); ok {
		return id
	}
	return assemble.AnonymousViewer
}

// RequestIDFromContext returns the request id assigned by MetricsMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ViewerMiddleware resolves the caller's identity from the token header
// once per request and stores it in the request context. A missing or
// unreadable token leaves the request anonymous rather than failing it;
// handlers that require identity reject anonymous viewers themselves.
func ViewerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer := assemble.AnonymousViewer
		if id, ok := identity.ViewerFromToken(r.Header.Get("token")); ok {
			viewer = id
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey, viewer)))
	}
}

// MetricsMiddleware wraps HTTP handlers to tag requests and record
// Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(wrapped.statusCode))
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, durationMs)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
