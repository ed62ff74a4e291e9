package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestRequestLoggerLevelsAndFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, logs := observedLogger()
	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/healthcheck", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/courses/:id", func(c *gin.Context) { c.String(http.StatusOK, "course") })
	r.GET("/api/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/api/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/api/stream", func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.String(http.StatusOK, "data: {}\n\n")
	})

	cases := []struct {
		path    string
		level   zapcore.Level
		message string
		route   string
		timing  string
	}{
		{"/healthcheck", zapcore.DebugLevel, "HTTP request", "/healthcheck", "duration_ms"},
		{"/api/courses/42", zapcore.InfoLevel, "HTTP request", "/api/courses/:id", "duration_ms"},
		{"/api/missing", zapcore.WarnLevel, "HTTP request", "/api/missing", "duration_ms"},
		{"/api/boom", zapcore.ErrorLevel, "HTTP request", "/api/boom", "duration_ms"},
		{"/api/stream", zapcore.InfoLevel, "HTTP stream closed", "/api/stream", "stream_ms"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			logs.TakeAll()
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
			entries := logs.TakeAll()
			if len(entries) != 1 {
				t.Fatalf("entries: %d", len(entries))
			}
			e := entries[0]
			if e.Level != tc.level || e.Message != tc.message {
				t.Fatalf("entry: level=%s message=%q", e.Level, e.Message)
			}
			fields := e.ContextMap()
			if fields["route"] != tc.route {
				t.Fatalf("route: %v", fields["route"])
			}
			if _, ok := fields[tc.timing]; !ok {
				t.Fatalf("missing %s in %v", tc.timing, fields)
			}
		})
	}
}

func TestRequestLoggerNilLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: %d", rec.Code)
	}
}
