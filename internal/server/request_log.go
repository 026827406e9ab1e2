package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
)

// requestLogger tags every request with an id and writes one slog line when
// it completes.
func (a *App) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		started := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(started).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if user, ok := authUserFromContext(c); ok {
			attrs = append(attrs, "user_id", user.ID)
		}
		switch {
		case status >= 500:
			a.logger.Error("request completed", attrs...)
		case status >= 400:
			a.logger.Warn("request completed", attrs...)
		default:
			a.logger.Info("request completed", attrs...)
		}
	}
}
