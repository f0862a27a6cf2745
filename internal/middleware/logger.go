package middleware

import (
	"time"

	"backoffice/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request and puts a request-scoped logger on the context.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	base := log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := base.With("method", c.Request.Method, "path", c.FullPath())
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if actor := ActorID(c); actor != nil {
			fields = append(fields, "actor_id", actor.String())
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			reqLog.Errorw("request failed", fields...)
		case status >= 400:
			reqLog.Warnw("request rejected", fields...)
		default:
			reqLog.Infow("request handled", fields...)
		}
	}
}
