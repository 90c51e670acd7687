package router

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newMiddlewareEngine(logs *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelInfo}))

	r := gin.New()
	r.Use(LoggerMiddleware(logger), CORSMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/jobs/:job_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	return r
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		requestID string
		wantLevel string
		wantLog   bool
	}{
		{name: "client error logs at warn", path: "/jobs/abc", wantLevel: `"level":"WARN"`, wantLog: true},
		{name: "health check is debug only", path: "/health", wantLog: false},
		{name: "request id is kept", path: "/jobs/abc", requestID: "req-1", wantLevel: `"request_id":"req-1"`, wantLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			r := newMiddlewareEngine(&logs)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.requestID != "" {
				req.Header.Set(requestIDHeader, tt.requestID)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, rec.Header().Get(requestIDHeader))
			}
			if !tt.wantLog {
				assert.Empty(t, logs.String())
				return
			}
			assert.Contains(t, logs.String(), tt.wantLevel)
			assert.Contains(t, logs.String(), `"job_id":"abc"`)
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	var logs bytes.Buffer
	r := newMiddlewareEngine(&logs)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/jobs/abc", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
}
