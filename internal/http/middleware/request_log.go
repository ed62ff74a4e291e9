package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/skillforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillforge-backend/internal/platform/logger"
)

// quietRoutes are polled by infrastructure and only logged at debug unless they fail.
var quietRoutes = map[string]bool{
	"/healthcheck": true,
	"/readyz":      true,
	"/metrics":     true,
}

// RequestLogger logs one line per request once the handler returns. For SSE
// responses that is when the stream closes, so the line reports the stream
// lifetime instead of a latency.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		elapsed := time.Since(start).Milliseconds()
		streamed := strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream")

		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}
		msg := "HTTP request"
		if streamed {
			msg = "HTTP stream closed"
			fields = append(fields, "stream_ms", elapsed)
		} else {
			fields = append(fields, "duration_ms", elapsed)
		}
		fields = appendCorrelation(c, fields)
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error(msg, fields...)
		case status >= 400:
			log.Warn(msg, fields...)
		case quietRoutes[route]:
			log.Debug(msg, fields...)
		default:
			log.Info(msg, fields...)
		}
	}
}

func appendCorrelation(c *gin.Context, fields []interface{}) []interface{} {
	ctx := c.Request.Context()
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			fields = append(fields, "request_id", td.RequestID)
		}
	}
	if rd := ctxutil.GetRequestData(ctx); rd != nil {
		fields = append(fields, "user_id", rd.UserID.String(), "org_id", rd.OrganizationID.String())
	}
	return fields
}
