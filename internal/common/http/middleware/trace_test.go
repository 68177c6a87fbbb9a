package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"offlinejudge/pkg/utils/contextkey"
	"offlinejudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTraceContextMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var gotTrace, gotRequest any
	router := gin.New()
	router.Use(TraceContextMiddleware())
	router.GET("/api/questions", func(c *gin.Context) {
		ctx := c.Request.Context()
		gotTrace, gotRequest = ctx.Value(contextkey.TraceID), ctx.Value(contextkey.RequestID)
		if v, _ := c.Get("trace_id"); v != gotTrace {
			t.Errorf("gin key %v and context %v disagree", v, gotTrace)
		}
		c.Status(http.StatusNoContent)
	})

	t.Run("generates ids", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/questions", nil))
		trace, _ := gotTrace.(string)
		if trace == "" || gotRequest == "" || rec.Header().Get("X-Trace-Id") != trace {
			t.Fatalf("missing ids: trace=%v request=%v header=%q", gotTrace, gotRequest, rec.Header().Get("X-Trace-Id"))
		}
	})

	t.Run("keeps caller ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/questions", nil)
		req.Header.Set("X-Trace-Id", " trace-123 ")
		req.Header.Set("X-Request-Id", "req-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if gotTrace != "trace-123" || gotRequest != "req-123" {
			t.Fatalf("ids not preserved: %v %v", gotTrace, gotRequest)
		}
		if rec.Header().Get("X-Request-Id") != "req-123" {
			t.Fatalf("request id not echoed")
		}
	})

	t.Run("replaces oversized ids", func(t *testing.T) {
		long := strings.Repeat("x", maxCorrelationIDLen+1)
		req := httptest.NewRequest(http.MethodGet, "/api/questions", nil)
		req.Header.Set("X-Trace-Id", long)
		router.ServeHTTP(httptest.NewRecorder(), req)
		if gotTrace == long || gotTrace == "" {
			t.Fatalf("oversized trace id kept: %v", gotTrace)
		}
	})
}

func TestRequestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	router := gin.New()
	router.Use(TraceContextMiddleware(), RequestLogger("/healthz"))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/questions/:id", func(c *gin.Context) {
		switch c.Param("id") {
		case "missing":
			c.Status(http.StatusNotFound)
		case "broken":
			c.Status(http.StatusInternalServerError)
		default:
			c.Status(http.StatusOK)
		}
	})

	for _, path := range []string{"/healthz", "/api/questions/1", "/api/questions/missing", "/api/questions/broken"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected health check to be skipped, got %d entries", len(entries))
	}
	want := []zapcore.Level{zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d: level %s, want %s", i, e.Level, want[i])
		}
		fields := e.ContextMap()
		if fields["route"] != "/api/questions/:id" || fields["trace_id"] == nil {
			t.Errorf("entry %d: unexpected fields %v", i, fields)
		}
	}
}
