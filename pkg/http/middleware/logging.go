package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"

	applogger "GridCast/pkg/logger"
)

// RequestLogging logs each request through the structured logger, or
// through the standard logger when none is configured.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)

			latency := time.Since(start)
			if l == nil {
				log.Printf("[%s] %s %s - %d (%s)",
					req.Method, req.RequestURI, req.RemoteAddr, res.Status, latency)
				return err
			}
			l.Info("http request",
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.String("remote", req.RemoteAddr),
				applogger.Int("status", res.Status),
				applogger.Duration("latency", latency),
			)
			return err
		}
	}
}
