package metrics

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	uuidPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	// Slack webhook paths carry secrets: /services/T000/B000/XXXX
	webhookPattern = regexp.MustCompile(`/services/[^?]+`)
)

var statusErrorTypes = map[int]string{
	400: "bad_request",
	401: "unauthorized",
	403: "forbidden",
	404: "not_found",
	408: "request_timeout",
	429: "rate_limited",
	500: "internal_server_error",
	502: "bad_gateway",
	503: "service_unavailable",
	504: "gateway_timeout",
}

// RecordExternalAPICall records one outbound call, e.g. a Slack webhook POST.
// statusCode is 0 when no response arrived.
func (m *Metrics) RecordExternalAPICall(endpoint, method string, statusCode int, duration time.Duration, err error) {
	m.safeExecute("RecordExternalAPICall", func() {
		endpoint = normalizeEndpoint(endpoint)
		status := strconv.Itoa(statusCode)

		m.ExternalAPIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
		m.ExternalAPIRequestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())

		if err != nil || statusCode >= 400 {
			m.ExternalAPIErrors.WithLabelValues(endpoint, getErrorType(statusCode, err)).Inc()
		}
	})
}

// normalizeEndpoint replaces ids and webhook secrets with placeholders.
func normalizeEndpoint(endpoint string) string {
	endpoint = webhookPattern.ReplaceAllString(endpoint, "/services/{webhook}")
	return uuidPattern.ReplaceAllString(endpoint, "{id}")
}

func getErrorType(statusCode int, err error) string {
	if t, ok := statusErrorTypes[statusCode]; ok {
		return t
	}
	switch {
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500 && statusCode < 600:
		return "server_error"
	}

	if err == nil {
		return "unknown"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection_refused"
	case strings.Contains(msg, "no such host"):
		return "dns_error"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "EOF"), strings.Contains(msg, "connection reset"):
		return "connection_reset"
	case strings.Contains(msg, "TLS"), strings.Contains(msg, "certificate"):
		return "tls_error"
	}
	return "network_error"
}
