// Package middleware provides the HTTP middleware chain of the search
// server: request ids, panic recovery, Prometheus metrics and timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/metrics"
)

// routeLabels maps a path prefix to the label recorded for it. Anything
// else is counted as "other" so stray URLs cannot grow the label set.
var routeLabels = []struct {
	prefix string
	label  string
	exact  bool
}{
	{"/api/v1/search", "/api/v1/search", true},
	{"/api/v1/documents/", "/api/v1/documents/:id", false},
	{"/api/v1/index/reload", "/api/v1/index/reload", true},
	{"/api/v1/cache/stats", "/api/v1/cache/stats", true},
	{"/api/v1/cache/invalidate", "/api/v1/cache/invalidate", true},
	{"/api/v1/analytics", "/api/v1/analytics", false},
	{"/health/", "/health", false},
}

// Metrics counts requests by method, route and status, observes latency and
// tracks in-flight requests. A nil m disables it.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			route := normalizePath(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.code())).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// statusRecorder remembers the first status written. A handler that only
// calls Write implicitly answers 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func normalizePath(path string) string {
	for _, r := range routeLabels {
		if r.exact && path == r.prefix {
			return r.label
		}
		if !r.exact && strings.HasPrefix(path, r.prefix) {
			return r.label
		}
	}
	return "other"
}
