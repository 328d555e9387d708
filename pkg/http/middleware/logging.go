package middleware

import (
	"time"

	applogger "PatternFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs each request. Requests slower than slowThreshold are
// logged at warn level, 5xx responses at error level.
func RequestLogging(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			latency := time.Since(start)
			status := c.Response().Status

			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("path", c.Path()),
				applogger.Int("status", status),
				applogger.Duration("latency_ms", latency),
				applogger.String("remote", c.RealIP()),
			}

			switch {
			case status >= 500:
				l.Error("request failed", fields...)
			case slowThreshold > 0 && latency >= slowThreshold:
				l.Warn("request slow", fields...)
			default:
				l.Debug("request", fields...)
			}

			return err
		}
	}
}
