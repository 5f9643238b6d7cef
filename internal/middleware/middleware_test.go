package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"project-workspace-api/internal/identity"
	"project-workspace-api/internal/metrics"
	"project-workspace-api/internal/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuth(t *testing.T) {
	v := identity.NewJWTValidator("secret", "")
	user := identity.Identity{UserID: uuid.New(), Email: "a@example.com"}
	token, err := v.Issue(user, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.Use(RequestID(), Auth(v))
	r.GET("/me", func(c *gin.Context) {
		id, ok := identity.FromContext(c.Request.Context())
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": c.MustGet(UserIDKey), "email": id.Email})
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "valid bearer", header: "Bearer " + token, status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + token, status: http.StatusOK},
		{name: "query token", query: "?access_token=" + token, status: http.StatusOK},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				body := decodeError(t, w)
				assert.Equal(t, response.ErrCodeUnauthorized, body.Error.Kind)
				assert.NotEmpty(t, body.RequestID)
			} else {
				assert.Contains(t, w.Body.String(), user.UserID.String())
			}
		})
	}
}

func TestRequestID_ReusesHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
}

func TestDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Deadline(50 * time.Millisecond))
	r.GET("/", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		<-c.Request.Context().Done()
		assert.ErrorIs(t, c.Request.Context().Err(), context.DeadlineExceeded)
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, response.ErrCodeInternal, decodeError(t, w).Error.Kind)
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics_CountsEveryRequest(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry(), zap.NewNop())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/tasks/:taskId", func(c *gin.Context) {
		var status int
		fmt.Sscan(c.Query("status"), &status)
		c.Status(status)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)
	properties.Property("one sample per request, labelled by route pattern", prop.ForAll(
		func(status int) bool {
			category := fmt.Sprintf("%dxx", status/100)
			counter := m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/tasks/:taskId", category)
			before := testutil.ToFloat64(counter)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/tasks/%s?status=%d", uuid.NewString(), status), nil))
			return w.Code == status && testutil.ToFloat64(counter) == before+1
		},
		gen.IntRange(200, 599),
	))
	properties.TestingRun(t)

	series := testutil.CollectAndCount(m.HTTPRequestsTotal)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, series, testutil.CollectAndCount(m.HTTPRequestsTotal))
}
