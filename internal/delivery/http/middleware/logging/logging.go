package http_logging_middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Requests logs one line per request. 5xx are errors, 4xx warnings.
func Requests(logger *logrus.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.Request.URL.Path
		if ctx.Request.URL.RawQuery != "" {
			path += "?" + ctx.Request.URL.RawQuery
		}
		status := ctx.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  ctx.ClientIP(),
			"method":     ctx.Request.Method,
			"path":       path,
		})
		if msg := ctx.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			entry = entry.WithField("errors", msg)
		}

		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
