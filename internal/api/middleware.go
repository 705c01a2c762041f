package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// routePattern returns the matched chi pattern, or "unmatched" when no route matched.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Instrument logs every request and records it with recorder. Labels use the route pattern
// so entity names do not multiply series.
func Instrument(recorder metrics.MetricRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)
			route := routePattern(r)
			recorder.RecordHTTPRequest(r.Context(), r.Method, route, status, duration)
			logger.Infof("%s %s -> %d (%d bytes, %s) [%s]",
				r.Method, r.URL.Path, status, ww.BytesWritten(), duration.Round(time.Millisecond), middleware.GetReqID(r.Context()))
		})
	}
}

// BasicAuth protects the data routes. An empty user disables authentication.
func BasicAuth(user, password string) func(http.Handler) http.Handler {
	if user == "" {
		logger.Warnf("No API credentials configured; data routes are unauthenticated.")
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.BasicAuth("hrsync", map[string]string{user: password})
}
