package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/storefront/internal/pkg/interceptors"
	"github.com/jcmexdev/storefront/internal/pkg/interceptors/constants"
	"github.com/jcmexdev/storefront/internal/pkg/metrics"
)

// AttachRequestID copies chi's request id into the context key shared with
// the gRPC side and echoes it to the client.
func AttachRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set(constants.HeaderXRequestId, requestID)
		}
		next.ServeHTTP(w, r.WithContext(interceptors.WithRequestID(r.Context(), requestID)))
	})
}

// Observe logs each request and records it on m, labelled by route pattern.
func Observe(m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = r.Method + " " + rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			m.Observe(route, status, elapsed)

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"request_id", interceptors.RequestIDFromContext(r.Context()),
			)
		})
	}
}
