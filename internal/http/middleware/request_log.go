package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

// RequestLog logs one line per request. Streaming endpoints log on
// completion like everything else; duration covers the whole stream.
func RequestLog(log *logger.Logger) gin.HandlerFunc {
	l := log.With("middleware", "RequestLog")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"durationMs", time.Since(start).Milliseconds(),
			"clientIp", c.ClientIP(),
		)
	}
}
