// Package logging builds the logrus loggers shared by the api, worker and cli binaries.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// New returns a FieldLogger tagged with the application and environment.
// Production emits JSON; anything else gets the human readable text formatter.
func New(application, environment string) logrus.FieldLogger {
	return NewWithOutput(os.Stderr, application, environment)
}

// NewWithOutput is New with an explicit writer, used by tests.
func NewWithOutput(out io.Writer, application, environment string) logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(out)
	if environment == "production" || environment == "prod" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment,
	})
}

// Discard returns a logger that drops everything.
func Discard() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// RequestLogger logs one line per request, skipping the given paths.
// 5xx responses log at error level, 4xx at warn.
func RequestLogger(log logrus.FieldLogger, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   status,
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		})
		if device := c.GetString("device_id"); device != "" {
			entry = entry.WithField("device_id", device)
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
