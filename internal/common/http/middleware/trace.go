package middleware

import (
	"context"
	"strings"

	"offlinejudge/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"

	maxCorrelationIDLen = 128
)

var correlationHeaders = [...]struct {
	header string
	key    interface{ Name() string }
}{
	{traceIDHeader, contextkey.TraceID},
	{requestIDHeader, contextkey.RequestID},
}

// TraceContextMiddleware puts the trace and request ids into the request
// context, the gin context and the response headers. Ids the caller sent are
// kept unless blank or oversized.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		for _, h := range correlationHeaders {
			id := strings.TrimSpace(c.GetHeader(h.header))
			if id == "" || len(id) > maxCorrelationIDLen {
				id = uuid.NewString()
			}
			ctx = context.WithValue(ctx, h.key, id)
			c.Set(h.key.Name(), id)
			c.Writer.Header().Set(h.header, id)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
