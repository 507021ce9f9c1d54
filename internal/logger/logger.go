// Package logger provides structured logging for the support relay. It uses
// Go's slog package with configurable level and output format.
package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// New creates a new slog Logger with the specified level and format. Format
// "json" emits JSON records, anything else emits text.
func New(levelStr, format string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Middleware returns a gin middleware that logs each request with method,
// path, status, and duration.
func Middleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := log.With(
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(startTime),
			"client_ip", c.ClientIP(),
		)

		switch {
		case c.Writer.Status() >= 500:
			entry.ErrorContext(c.Request.Context(), "Request failed")
		case c.Writer.Status() >= 400:
			entry.WarnContext(c.Request.Context(), "Request rejected")
		default:
			entry.InfoContext(c.Request.Context(), "Request handled")
		}
	}
}
