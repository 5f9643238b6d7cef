package metrics

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func getTestMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, zap.NewNop()), reg
}

func TestMetricNamesUseNamespaceAndHelp(t *testing.T) {
	m, reg := getTestMetrics()
	m.RecordHTTPRequest("GET", "/api/tasks/{id}", 200, time.Millisecond)
	m.RecordDBQuery("SELECT", "tasks", time.Millisecond, nil)
	m.RecordExternalAPICall("https://hooks.slack.com/services/T0/B0/x", "POST", 200, time.Millisecond, nil)
	m.SetTasksTotal(1, 1)
	m.RecordTaskTransition("status_changed")
	m.RecordAutomationExecution(true)
	m.RecordNotifications("mentioned", 1)
	m.RecordChangeEvent("tasks", "update")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	for _, f := range families {
		assert.True(t, strings.HasPrefix(f.GetName(), namespace+"_"), f.GetName())
		assert.NotEmpty(t, f.GetHelp(), f.GetName())
		assert.Equal(t, strings.ToLower(f.GetName()), f.GetName())
	}
}

func TestRecordHTTPRequest_CategorizesStatus(t *testing.T) {
	m, _ := getTestMetrics()
	m.RecordHTTPRequest("POST", "/api/tasks/{id}/move", 409, time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/tasks/{id}/move", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/tasks/{id}/move", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/tasks/{id}/move", "2xx")))
}

func TestShouldSkipEndpoint(t *testing.T) {
	tests := []struct {
		path string
		skip bool
	}{
		{"/metrics", true},
		{"/api/metrics", true},
		{"/api/ready", true},
		{"/api/swagger/index.html", true},
		{"/api/changes/ws", true},
		{"/api/tasks/1/move", false},
		{"/api/projects", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.skip, ShouldSkipEndpoint(tt.path), tt.path)
	}
	assert.Equal(t, "unknown", statusClass(0))
	assert.Equal(t, "5xx", statusClass(504))
}

func TestRecordExternalAPICall_HidesWebhookSecret(t *testing.T) {
	m, _ := getTestMetrics()
	m.RecordExternalAPICall("https://hooks.slack.com/services/T0/B0/secret", "POST", 500, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExternalAPIRequestsTotal.WithLabelValues("https://hooks.slack.com/services/{webhook}", "POST", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExternalAPIErrors.WithLabelValues("https://hooks.slack.com/services/{webhook}", "internal_server_error")))
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   string
	}{
		{429, nil, "rate_limited"},
		{418, nil, "client_error"},
		{599, nil, "server_error"},
		{0, errors.New("dial tcp: connection refused"), "connection_refused"},
		{0, context.DeadlineExceeded, "timeout"},
		{0, errors.New("weird"), "network_error"},
		{0, nil, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, getErrorType(tt.status, tt.err))
	}
}

func TestUpdateDBStats_AddsWaitDelta(t *testing.T) {
	m, _ := getTestMetrics()
	m.UpdateDBStats(sql.DBStats{OpenConnections: 3, WaitCount: 5, WaitDuration: time.Second})
	m.UpdateDBStats(sql.DBStats{OpenConnections: 2, WaitCount: 7, WaitDuration: 3 * time.Second})
	m.UpdateDBStats("not stats")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DBConnectionsOpen))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.DBConnectionWaitTotal))
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.DBConnectionWaitDuration), 1e-9)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTaskTransition("task_approved")
		m.IncrementAutomationDropped()
	})
}

type stubCounter struct {
	projects int64
	err      error
}

func (s stubCounter) CountActiveProjects(ctx context.Context) (int64, error) {
	return s.projects, s.err
}
func (s stubCounter) CountTasks(ctx context.Context) (int64, int64, error)  { return 4, 2, nil }
func (s stubCounter) CountRunningTimers(ctx context.Context) (int64, error) { return 1, nil }

func TestBusinessMetricsCollector_Collect(t *testing.T) {
	m, _ := getTestMetrics()
	NewBusinessMetricsCollector(stubCounter{projects: 3}, m, zap.NewNop()).Collect(context.Background())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ProjectsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("open")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TasksTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunningTimers))

	m.SetProjectsTotal(9)
	NewBusinessMetricsCollector(stubCounter{err: errors.New("down")}, m, zap.NewNop()).Collect(context.Background())
	assert.Equal(t, 9.0, testutil.ToFloat64(m.ProjectsTotal))
}
