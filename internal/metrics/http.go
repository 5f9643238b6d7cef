package metrics

import (
	"strconv"
	"strings"
	"time"
)

// probePaths are scraped or polled by infrastructure and never counted.
var probePaths = []string{"/metrics", "/health", "/ready"}

// RecordHTTPRequest counts one command request by route pattern and status class.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.safeExecute("RecordHTTPRequest", func() {
		m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusClass(statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	})
}

// statusClass maps 204 to "2xx", 409 to "4xx" and so on.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// ShouldSkipEndpoint reports whether path is a probe, swagger asset or the
// long-lived change feed, under any base path.
func ShouldSkipEndpoint(path string) bool {
	for _, p := range probePaths {
		if path == p || strings.HasSuffix(path, p) {
			return true
		}
	}
	return strings.Contains(path, "/swagger/") || strings.HasSuffix(path, "/changes/ws")
}
